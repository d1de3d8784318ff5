package accept

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/slok/goaccept"
	"github.com/slok/goaccept/errors"
	"github.com/slok/goaccept/log"
	"github.com/slok/goaccept/metrics"
)

// Sleeper waits for the duration or until the context is done, in that case
// it returns the context error.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleeper is the Sleeper based on the runtime timers.
func TimerSleeper(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenerConfig is the configuration of the listener that handles accept errors.
type ListenerConfig struct {
	// MinDelay is the wait before retrying after the first transient error.
	MinDelay time.Duration
	// MaxDelay is the ceiling of the wait between retries.
	MaxDelay time.Duration
	// Classifier classifies the accept errors. By default DefaultClassifier.
	Classifier Classifier
	// Sleeper is used to wait between retries. By default TimerSleeper.
	Sleeper Sleeper
	// RateLimit is the maximum number of accepted connections per second, if
	// the accept rate is higher Accept waits. 0 disables the rate limit.
	RateLimit float64
	// RateBurst is the number of connections that can be accepted at once
	// over the rate limit. By default the rate limit rounded up.
	RateBurst int
	// HintLinkBase is the base of the link logged with the error hints.
	// By default DefaultHintLinkBase.
	HintLinkBase string
	// ID identifies the listener on the logs and the metrics.
	ID string
	// Logger is the logger used by the listener.
	Logger log.Logger
	// MetricsRecorder is the recorder used to measure the listener.
	MetricsRecorder metrics.Recorder
}

func (c *ListenerConfig) defaults() {
	if c.Sleeper == nil {
		c.Sleeper = TimerSleeper
	}

	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit)
		if float64(c.RateBurst) < c.RateLimit {
			c.RateBurst++
		}
	}

	if c.HintLinkBase == "" {
		c.HintLinkBase = DefaultHintLinkBase
	}

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

// NewMiddleware returns a listener middleware that handles the accept errors,
// see NewListener.
func NewMiddleware(cfg ListenerConfig) (goaccept.ListenerMiddleware, error) {
	// Fail on creation instead of when wrapping.
	if _, err := NewPolicy(cfg.policyConfig()); err != nil {
		return nil, err
	}

	return func(next net.Listener) net.Listener {
		l, _ := NewListener(next, cfg)
		return l
	}, nil
}

// NewListener wraps a listener so Accept retries the transient errors with
// backoff and the connection errors right away, only a connection or a fatal
// error is returned. Every error is logged and measured.
//
// Closing the listener stops an Accept that is waiting to retry.
func NewListener(l net.Listener, cfg ListenerConfig) (net.Listener, error) {
	cfg.defaults()

	policy, err := NewPolicy(cfg.policyConfig())
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &listener{
		Listener: l,
		cfg:      cfg,
		policy:   policy,
		limiter:  limiter,
		logger:   cfg.Logger.WithKV(log.KV{"listener": cfg.ID, "addr": addrString(l)}),
		recorder: cfg.MetricsRecorder.WithID(cfg.ID),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (c ListenerConfig) policyConfig() PolicyConfig {
	return PolicyConfig{
		MinDelay:   c.MinDelay,
		MaxDelay:   c.MaxDelay,
		Classifier: c.Classifier,
	}
}

type listener struct {
	net.Listener
	cfg      ListenerConfig
	limiter  *rate.Limiter
	logger   log.Logger
	recorder metrics.Recorder
	ctx      context.Context
	cancel   context.CancelFunc

	// mu serializes the accept attempts, the policy is not safe for concurrent use.
	mu     sync.Mutex
	policy *Policy
}

// Accept waits for and returns the next connection.
func (l *listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if err := l.waitRate(); err != nil {
			return nil, err
		}

		conn, err := l.Listener.Accept()
		d := l.policy.Handle(err)
		if d.Class == ClassSuccess && err == nil && conn != nil {
			return conn, nil
		}

		// Cleanup in case a classifier doesn't consider the returned connection a success.
		if conn != nil {
			conn.Close()
		}

		// Errors classified as a success are ignored, there is no connection
		// to return so accept again right away.
		if d.Class == ClassSuccess {
			l.logger.Debugf("accept error ignored: %v", err)
			continue
		}
		l.recorder.IncAcceptError(d.Class.String())

		switch d.Class {
		case ClassConnection:
			l.logger.Debugf("accept connection error: %s", err)
		case ClassTransient:
			l.logTransient(err, d.Delay)
			l.recorder.ObserveAcceptBackoff(d.Delay)
			if err := l.cfg.Sleeper(l.ctx, d.Delay); err != nil {
				return nil, l.closedErr()
			}
		default:
			if l.ctx.Err() == nil {
				l.logger.Errorf("accept error: %s", err)
			}
			return nil, err
		}
	}
}

// Close closes the wrapped listener and stops any Accept waiting to retry.
func (l *listener) Close() error {
	l.cancel()
	return l.Listener.Close()
}

func (l *listener) waitRate() error {
	if l.limiter == nil || l.limiter.Allow() {
		return nil
	}

	l.recorder.IncAcceptRateLimited()
	if err := l.limiter.Wait(l.ctx); err != nil {
		if l.ctx.Err() != nil {
			return l.closedErr()
		}
		return err
	}
	return nil
}

func (l *listener) logTransient(err error, delay time.Duration) {
	if hint := Hint(err); hint != "" {
		l.logger.Warningf("accept error: %s. %s %s#%s; retrying in %s", err, hint, l.cfg.HintLinkBase, HintAnchor(err), delay)
		return
	}
	l.logger.Warningf("accept error: %s; retrying in %s", err, delay)
}

func (l *listener) closedErr() error {
	return fmt.Errorf("%w: %w", errors.ErrListenerClosed, net.ErrClosed)
}

func addrString(l net.Listener) string {
	if addr := l.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
