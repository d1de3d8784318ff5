/*
Package goaccept has the primitives to accept connections without falling over
when the process runs out of resources.

The work is split in two listener middlewares that can be used alone or chained:

  - accept: classifies the errors returned by Accept, retries the transient
    ones (like running out of file descriptors) with exponential backoff and
    returns the fatal ones.
  - backpressure: limits the number of connections alive at the same time,
    Accept waits for a free slot and the slot is released when the
    connection is closed.

Serve glues a listener with a connection handler.
*/
package goaccept

import (
	"context"
	"net"
	"sync"
)

// Handler handles an accepted connection. The connection is closed when the
// handler returns.
type Handler func(ctx context.Context, conn net.Conn)

// ListenerMiddleware wraps a listener returning a new one with extra behaviour.
type ListenerMiddleware func(next net.Listener) net.Listener

// ListenerChain wraps the listener with the middlewares. The first middleware
// will be the outermost one, the first that gets the Accept call.
func ListenerChain(l net.Listener, middlewares ...ListenerMiddleware) net.Listener {
	for i := len(middlewares) - 1; i >= 0; i-- {
		l = middlewares[i](l)
	}
	return l
}

// Serve accepts connections from the listener and handles each of them on its
// own goroutine until Accept returns an error or the context is done.
//
// The listener is always closed when Serve returns. If the context is done
// Serve returns nil, any other accept error is returned. In both cases the
// context passed to the handlers is canceled and Serve waits for them to finish.
func Serve(ctx context.Context, l net.Listener, h Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	// Handlers are canceled before waiting for them.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			h(ctx, conn)
		}()
	}
}
