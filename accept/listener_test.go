package accept_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/goaccept"
	"github.com/slok/goaccept/accept"
	goaccepterrors "github.com/slok/goaccept/errors"
	mmetrics "github.com/slok/goaccept/internal/mocks/metrics"
)

// scriptedListener returns the scripted results in order, when there are no
// more results it blocks until closed.
type scriptedListener struct {
	mu      sync.Mutex
	results []error
	closeC  chan struct{}
	once    sync.Once
}

func newScriptedListener(results ...error) *scriptedListener {
	return &scriptedListener{
		results: results,
		closeC:  make(chan struct{}),
	}
}

func (s *scriptedListener) Accept() (net.Conn, error) {
	s.mu.Lock()
	if len(s.results) == 0 {
		s.mu.Unlock()
		<-s.closeC
		return nil, net.ErrClosed
	}
	err := s.results[0]
	s.results = s.results[1:]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &mockConn{}, nil
}

func (s *scriptedListener) Close() error {
	s.once.Do(func() { close(s.closeC) })
	return nil
}

func (s *scriptedListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

type mockConn struct {
	net.Conn
}

func (m *mockConn) Close() error { return nil }

// recordingSleeper doesn't wait, it records the requested durations.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestListenerAccept(t *testing.T) {
	tests := []struct {
		name      string
		results   []error
		accepts   int
		expErrs   []error
		expDelays []time.Duration
	}{
		{
			name:      "Transient errors should be retried with backoff until a connection is accepted.",
			results:   []error{errTransient, errTransient, errTransient, nil},
			accepts:   1,
			expErrs:   []error{nil},
			expDelays: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond},
		},
		{
			name:      "The backoff should reset after an accepted connection.",
			results:   []error{errTransient, errTransient, errTransient, nil, errTransient, nil},
			accepts:   2,
			expErrs:   []error{nil, nil},
			expDelays: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 1 * time.Millisecond},
		},
		{
			name:      "Connection errors should be retried right away.",
			results:   []error{errConnection, errConnection, nil},
			accepts:   1,
			expErrs:   []error{nil},
			expDelays: []time.Duration{},
		},
		{
			name:      "Fatal errors should be returned.",
			results:   []error{errTransient, errFatal, nil},
			accepts:   2,
			expErrs:   []error{errFatal, nil},
			expDelays: []time.Duration{1 * time.Millisecond},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			sleeper := &recordingSleeper{}
			l, err := accept.NewListener(newScriptedListener(test.results...), accept.ListenerConfig{
				MinDelay:   time.Millisecond,
				MaxDelay:   time.Second,
				Classifier: scriptedClassifier,
				Sleeper:    sleeper.Sleep,
			})
			require.NoError(err)
			defer l.Close()

			gotErrs := []error{}
			for i := 0; i < test.accepts; i++ {
				conn, err := l.Accept()
				if err == nil {
					assert.NotNil(conn)
				}
				gotErrs = append(gotErrs, err)
			}

			assert.Equal(test.expErrs, gotErrs)
			assert.Equal(test.expDelays, append([]time.Duration{}, sleeper.delays...))
		})
	}
}

func TestListenerAcceptIgnoredErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	errIgnored := errors.New("ignored")
	classifier := func(err error) accept.Class {
		if err == errIgnored {
			return accept.ClassSuccess
		}
		return scriptedClassifier(err)
	}

	m := &mmetrics.Recorder{}
	m.On("WithID", "test").Once().Return(m)

	sleeper := &recordingSleeper{}
	l, err := accept.NewListener(newScriptedListener(errIgnored, errIgnored, nil), accept.ListenerConfig{
		Classifier:      classifier,
		Sleeper:         sleeper.Sleep,
		ID:              "test",
		MetricsRecorder: m,
	})
	require.NoError(err)
	defer l.Close()

	// An error classified as a success has no connection, it should accept again.
	conn, err := l.Accept()
	require.NoError(err)
	assert.NotNil(conn)
	assert.Empty(sleeper.delays)
	m.AssertExpectations(t)
}

func TestListenerCloseStopsBackoff(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l, err := accept.NewListener(newScriptedListener(errTransient), accept.ListenerConfig{
		MinDelay:   time.Hour,
		MaxDelay:   time.Hour,
		Classifier: scriptedClassifier,
	})
	require.NoError(err)

	errC := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		errC <- err
	}()

	// Give time to enter the backoff.
	time.Sleep(10 * time.Millisecond)
	require.NoError(l.Close())

	select {
	case err := <-errC:
		assert.ErrorIs(err, goaccepterrors.ErrListenerClosed)
		assert.ErrorIs(err, net.ErrClosed)
	case <-time.After(time.Second):
		assert.FailNow("accept should stop waiting when the listener is closed")
	}
}

func TestListenerRateLimit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := &mmetrics.Recorder{}
	m.On("WithID", "test").Once().Return(m)
	m.On("IncAcceptRateLimited").Times(2)

	l, err := accept.NewListener(newScriptedListener(nil, nil, nil), accept.ListenerConfig{
		RateLimit:       20,
		RateBurst:       1,
		ID:              "test",
		MetricsRecorder: m,
	})
	require.NoError(err)
	defer l.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := l.Accept()
		require.NoError(err)
	}

	// 3 connections with burst 1 at 20/s need at least 2 intervals of 50ms.
	assert.GreaterOrEqual(time.Since(start), 90*time.Millisecond)
	m.AssertExpectations(t)
}

func TestListenerMetrics(t *testing.T) {
	require := require.New(t)

	m := &mmetrics.Recorder{}
	m.On("WithID", "test").Once().Return(m)
	m.On("IncAcceptError", "transient").Twice()
	m.On("IncAcceptError", "connection").Once()
	m.On("ObserveAcceptBackoff", mock.Anything).Twice()

	sleeper := &recordingSleeper{}
	l, err := accept.NewListener(newScriptedListener(errTransient, errConnection, errTransient, nil), accept.ListenerConfig{
		Classifier:      scriptedClassifier,
		Sleeper:         sleeper.Sleep,
		ID:              "test",
		MetricsRecorder: m,
	})
	require.NoError(err)
	defer l.Close()

	_, err = l.Accept()
	require.NoError(err)

	m.AssertExpectations(t)
}

func TestNewMiddleware(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	_, err := accept.NewMiddleware(accept.ListenerConfig{MinDelay: time.Second, MaxDelay: time.Millisecond})
	assert.ErrorIs(err, goaccepterrors.ErrInvalidDelay)

	sleeper := &recordingSleeper{}
	mw, err := accept.NewMiddleware(accept.ListenerConfig{
		Classifier: scriptedClassifier,
		Sleeper:    sleeper.Sleep,
	})
	require.NoError(err)

	l := goaccept.ListenerChain(newScriptedListener(errTransient, nil), mw)
	defer l.Close()

	_, err = l.Accept()
	require.NoError(err)
	assert.Equal([]time.Duration{time.Millisecond}, sleeper.delays)
}
