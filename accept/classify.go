package accept

import (
	"errors"
	"net"
	"syscall"
)

// Classifier knows how to classify the result of an accept attempt.
type Classifier func(err error) Class

// ClassifierConfig is the configuration of the classifier returned by NewClassifier.
type ClassifierConfig struct {
	// ResourceExhaustionIsFatal makes running out of file descriptors, buffers or
	// memory stop the accept loop instead of retrying it with backoff.
	ResourceExhaustionIsFatal bool
	// Transient are extra errors (checked with errors.Is) that will be retried with backoff.
	Transient []error
}

// DefaultClassifier retries resource exhaustion with backoff, retries single
// connection failures right away and stops on the rest of errors.
var DefaultClassifier = NewClassifier(ClassifierConfig{})

// NewClassifier returns a Classifier that applies these rules in order:
//
//   - nil is a success.
//   - A closed listener is fatal.
//   - Running out of file descriptors (EMFILE, ENFILE), buffers (ENOBUFS) or
//     memory (ENOMEM) is transient, unless ResourceExhaustionIsFatal is set.
//   - A connection aborted, reset or refused before being accepted is a
//     connection error.
//   - A timeout is transient.
//   - Any of the configured transient errors is transient.
//   - Anything else is fatal.
func NewClassifier(cfg ClassifierConfig) Classifier {
	return func(err error) Class {
		if err == nil {
			return ClassSuccess
		}

		if errors.Is(err, net.ErrClosed) {
			return ClassFatal
		}

		if errnoIn(err, resourceExhaustionErrnos) {
			if cfg.ResourceExhaustionIsFatal {
				return ClassFatal
			}
			return ClassTransient
		}

		if errnoIn(err, connectionErrnos) {
			return ClassConnection
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ClassTransient
		}

		for _, terr := range cfg.Transient {
			if errors.Is(err, terr) {
				return ClassTransient
			}
		}

		return ClassFatal
	}
}

// DefaultHintLinkBase is the base of the links logged with the hints.
const DefaultHintLinkBase = "https://big.ly/async-err"

type hint struct {
	text   string
	anchor string
}

// Hint returns a hint for the operator on how to fix the cause of the error,
// or an empty string if there is none.
func Hint(err error) string {
	return errnoHint(err).text
}

// HintAnchor returns the anchor of the error hint, to be appended after a
// link base and a `#`. Anchors are stable, empty if there is no hint.
func HintAnchor(err error) string {
	return errnoHint(err).anchor
}

func errnoHint(err error) hint {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return hint{}
	}
	return errnoHints[errno]
}

func errnoIn(err error, errnos []syscall.Errno) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	for _, e := range errnos {
		if errno == e {
			return true
		}
	}
	return false
}
