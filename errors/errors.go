package errors

import "errors"

var (
	// ErrInvalidLimit will be used when a connection limiter is configured with a
	// capacity that can never admit a connection.
	ErrInvalidLimit = errors.New("invalid connection limit, must be greater than zero")
	// ErrInvalidDelay will be used when the accept backoff delays are not a valid range.
	ErrInvalidDelay = errors.New("invalid accept backoff delay range")
	// ErrListenerClosed will be used when a listener has been closed while an
	// accept was waiting for a backoff, a rate limit or a free connection slot.
	ErrListenerClosed = errors.New("listener closed while waiting to accept")
)
