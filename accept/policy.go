package accept

import (
	"fmt"
	"time"

	"github.com/slok/goaccept/errors"
)

// PolicyConfig is the configuration of the accept error Policy.
type PolicyConfig struct {
	// MinDelay is the wait before retrying after the first transient error.
	MinDelay time.Duration
	// MaxDelay is the ceiling of the wait between retries.
	MaxDelay time.Duration
	// Classifier classifies the accept errors. By default DefaultClassifier.
	Classifier Classifier
}

func (c *PolicyConfig) defaults() {
	if c.MinDelay == 0 {
		c.MinDelay = 1 * time.Millisecond
	}

	if c.MaxDelay == 0 {
		c.MaxDelay = 1 * time.Second
	}

	if c.Classifier == nil {
		c.Classifier = DefaultClassifier
	}
}

func (c PolicyConfig) validate() error {
	if c.MinDelay < 0 {
		return fmt.Errorf("%w: negative minimum delay %s", errors.ErrInvalidDelay, c.MinDelay)
	}

	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("%w: maximum delay %s is lower than minimum delay %s", errors.ErrInvalidDelay, c.MaxDelay, c.MinDelay)
	}

	return nil
}

// Decision is what the accept loop should do with an accept result.
type Decision struct {
	// Class is the classification of the result.
	Class Class
	// Delay is the time to wait before retrying, only set on ClassTransient.
	Delay time.Duration
}

// Policy classifies accept results and tracks the backoff between transient
// errors. Each accept loop needs its own Policy, it's not safe for concurrent use.
type Policy struct {
	cfg     PolicyConfig
	current time.Duration
}

// NewPolicy returns a new accept error Policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Policy{
		cfg:     cfg,
		current: cfg.MinDelay,
	}, nil
}

// Handle classifies the result of an accept attempt, err is nil on success.
//
// A success resets the backoff. A transient error returns the current delay
// and doubles it for the next one, never beyond the maximum.
func (p *Policy) Handle(err error) Decision {
	if err == nil {
		p.Reset()
		return Decision{Class: ClassSuccess}
	}

	class := p.cfg.Classifier(err)
	switch class {
	case ClassSuccess:
		p.Reset()
	case ClassTransient:
		d := p.current
		if p.current > p.cfg.MaxDelay/2 {
			p.current = p.cfg.MaxDelay
		} else {
			p.current *= 2
		}
		return Decision{Class: class, Delay: d}
	}

	return Decision{Class: class}
}

// Reset sets the backoff back to the minimum delay.
func (p *Policy) Reset() {
	p.current = p.cfg.MinDelay
}

// CurrentDelay returns the delay the next transient error will wait.
func (p *Policy) CurrentDelay() time.Duration {
	return p.current
}
