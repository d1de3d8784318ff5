// Package backpressure limits the number of connections that are being handled
// at the same time.
//
// The Limiter is a counting gate: every admitted connection gets a Guard that
// holds one of the MaxConnections slots until it's released. When all the slots
// are taken, admissions wait in first-in-first-out order, so a continuous
// arrival of new connections can't starve the ones that were already waiting.
// Releasing a guard with admissions waiting hands the slot directly to the
// oldest one.
//
// Admissions are canceled with their context; a canceled admission leaves the
// queue without taking a slot.
//
// Most servers don't use the Limiter directly but through NewListener, that
// makes Accept wait for a free slot before taking a connection from the
// kernel and releases the slot when the connection is closed:
//
//	lim, err := backpressure.New(backpressure.Config{MaxConnections: 1000})
//	if err != nil {
//		return err
//	}
//	l = backpressure.NewListener(l, lim)
package backpressure
