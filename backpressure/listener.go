package backpressure

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/slok/goaccept"
	"github.com/slok/goaccept/errors"
)

// NewMiddleware returns a listener middleware that applies the limiter
// backpressure, see NewListener.
func NewMiddleware(lim *Limiter) goaccept.ListenerMiddleware {
	return func(next net.Listener) net.Listener {
		return NewListener(next, lim)
	}
}

// NewListener wraps a listener so every Accept first admits a connection on the
// limiter. While the limiter is full Accept doesn't pull connections from the
// wrapped listener, they wait on the kernel backlog.
//
// The returned connections are *Conn, the slot is released when they are
// closed.
func NewListener(l net.Listener, lim *Limiter) net.Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &limitedListener{
		Listener: l,
		limiter:  lim,
		ctx:      ctx,
		cancel:   cancel,
	}
}

type limitedListener struct {
	net.Listener
	limiter *Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

// Accept waits for a free slot and then accepts a connection.
func (l *limitedListener) Accept() (net.Conn, error) {
	g, err := l.limiter.Admit(l.ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrListenerClosed, net.ErrClosed)
	}

	conn, err := l.Listener.Accept()
	if err != nil {
		// Accept failed, release the reserved slot.
		g.Release()
		return nil, err
	}

	return &Conn{Conn: conn, guard: g}, nil
}

// Close closes the wrapped listener and stops any Accept waiting for a slot.
func (l *limitedListener) Close() error {
	l.cancel()
	return l.Listener.Close()
}

// Conn is a connection admitted by a limiter, it holds its guard until closed.
type Conn struct {
	net.Conn
	guard *Guard
	once  sync.Once
	err   error
}

// Close closes the connection and releases its slot.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
		c.guard.Release()
	})
	return c.err
}

// Guard returns the guard of the connection.
func (c *Conn) Guard() *Guard {
	return c.guard
}
