package backpressure

import (
	"container/list"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/slok/goaccept/errors"
	"github.com/slok/goaccept/log"
	"github.com/slok/goaccept/metrics"
)

// Config is the configuration of the connection Limiter.
type Config struct {
	// MaxConnections is the number of connections that can be admitted at the
	// same time. It's fixed for the lifetime of the limiter and must be greater than 0.
	MaxConnections int
	// ID identifies the limiter on the logs and the metrics.
	ID string
	// Logger is the logger used by the limiter.
	Logger log.Logger
	// MetricsRecorder is the recorder used to measure the limiter.
	MetricsRecorder metrics.Recorder
}

func (c *Config) defaults() {
	if c.ID == "" {
		c.ID = "default"
	}

	if c.Logger == nil {
		c.Logger = log.Dummy
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.Dummy
	}
}

func (c Config) validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: got %d", errors.ErrInvalidLimit, c.MaxConnections)
	}
	return nil
}

// waiter is an admission suspended until a slot is handed to it.
type waiter struct {
	ready chan struct{}
}

// Limiter is a counting admission gate for connections. At most MaxConnections
// guards are alive at the same time, the admissions that don't fit wait in
// first-in-first-out order until a guard is released.
//
// A Limiter is safe for concurrent use and it's meant to be created once per
// listener and shared by everything that accepts on it.
type Limiter struct {
	cfg      Config
	logger   log.Logger
	recorder metrics.Recorder

	mu          sync.Mutex
	outstanding int
	waiters     list.List // Of *waiter.
}

// New returns a new Limiter. It fails with errors.ErrInvalidLimit when the
// configured capacity can't admit any connection.
func New(cfg Config) (*Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.defaults()

	return &Limiter{
		cfg:      cfg,
		logger:   cfg.Logger.WithKV(log.KV{"limiter": cfg.ID}),
		recorder: cfg.MetricsRecorder.WithID(cfg.ID),
	}, nil
}

// Admit reserves a connection slot and returns the Guard that holds it. If the
// limiter is full it waits until a slot is handed to it, the waiting admissions
// are served in the order they started waiting.
//
// If the context is done while waiting, the admission leaves the queue
// without reserving anything and the context error is returned.
func (l *Limiter) Admit(ctx context.Context) (*Guard, error) {
	l.mu.Lock()
	if l.outstanding < l.cfg.MaxConnections && l.waiters.Len() == 0 {
		l.outstanding++
		l.recordStateLocked()
		l.mu.Unlock()

		l.recorder.IncAdmission(false)
		return l.newGuard(), nil
	}

	// Full, queue and wait for our turn.
	w := &waiter{ready: make(chan struct{})}
	elem := l.waiters.PushBack(w)
	l.recordStateLocked()
	l.mu.Unlock()

	start := time.Now()
	select {
	case <-w.ready:
		l.recorder.ObserveAdmissionWait(start)
		l.recorder.IncAdmission(true)
		return l.newGuard(), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-w.ready:
		// The slot was handed to us at the same time the context finished,
		// give it to the next one as if we never had it.
		l.releaseLocked()
	default:
		l.waiters.Remove(elem)
		l.recordStateLocked()
	}
	l.mu.Unlock()

	l.recorder.IncCanceledAdmission()
	return nil, ctx.Err()
}

// TryAdmit reserves a connection slot only if it can be done without waiting.
// It never takes a slot when there are admissions already waiting.
func (l *Limiter) TryAdmit() (*Guard, bool) {
	l.mu.Lock()
	if l.outstanding >= l.cfg.MaxConnections || l.waiters.Len() > 0 {
		l.mu.Unlock()
		return nil, false
	}
	l.outstanding++
	l.recordStateLocked()
	l.mu.Unlock()

	l.recorder.IncAdmission(false)
	return l.newGuard(), true
}

// Do admits, executes f and releases the slot when f finishes, whatever
// the way it finishes (including panics).
func (l *Limiter) Do(ctx context.Context, f func(ctx context.Context) error) error {
	g, err := l.Admit(ctx)
	if err != nil {
		return err
	}
	defer g.Release()

	return f(ctx)
}

// IsFull returns true when a new admission would need to wait.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding >= l.cfg.MaxConnections
}

// Outstanding returns the number of admitted connections not released yet.
func (l *Limiter) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}

// Waiting returns the number of admissions waiting for a slot.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

// Limit returns the maximum number of connections.
func (l *Limiter) Limit() int {
	return l.cfg.MaxConnections
}

// Stats is a snapshot of the limiter state.
type Stats struct {
	Outstanding    int
	Waiting        int
	MaxConnections int
}

// Stats returns the current limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Outstanding:    l.outstanding,
		Waiting:        l.waiters.Len(),
		MaxConnections: l.cfg.MaxConnections,
	}
}

func (l *Limiter) String() string {
	s := l.Stats()
	return fmt.Sprintf("<Limiter %d/%d>", s.Outstanding, s.MaxConnections)
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
}

// releaseLocked frees one slot and hands it to the oldest waiter if any, in
// that case outstanding doesn't change.
func (l *Limiter) releaseLocked() {
	front := l.waiters.Front()
	if front == nil {
		l.outstanding--
		l.recordStateLocked()
		return
	}

	w := l.waiters.Remove(front).(*waiter)
	close(w.ready)
	l.recordStateLocked()
}

func (l *Limiter) recordStateLocked() {
	l.recorder.SetOutstandingConnections(l.outstanding)
	l.recorder.SetWaitingAdmissions(l.waiters.Len())
}

func (l *Limiter) newGuard() *Guard {
	s := &guardState{limiter: l}
	g := &Guard{state: s}
	runtime.AddCleanup(g, func(s *guardState) { s.reclaim() }, s)
	return g
}
