package backpressure

import "sync"

// Guard holds one connection slot of a Limiter. It doesn't own the connection,
// it's the proof that the slot was reserved.
//
// Release must be called once the connection has finished, usually with a
// defer just after the admission. A Guard that is garbage collected without
// being released gets its slot released, this is a safety net, it's
// logged and measured as a leak.
type Guard struct {
	state *guardState
}

// guardState is kept apart from the Guard so the cleanup that reclaims the slot
// doesn't keep the Guard reachable.
type guardState struct {
	limiter *Limiter
	once    sync.Once
}

// Release returns the slot to the limiter. Only the first call has effect.
func (g *Guard) Release() {
	g.state.once.Do(g.state.limiter.release)
}

func (s *guardState) reclaim() {
	leaked := false
	s.once.Do(func() {
		leaked = true
		s.limiter.release()
	})

	if leaked {
		s.limiter.recorder.IncLeakedGuard()
		s.limiter.logger.Warningf("connection guard was not released, slot reclaimed on garbage collection")
	}
}
