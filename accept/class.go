package accept

// Class is the classification of an accept attempt result.
type Class int

const (
	// ClassSuccess is a connection accepted.
	ClassSuccess Class = iota
	// ClassTransient is an error that is expected to go away by itself, the
	// accept should be retried after a backoff.
	ClassTransient
	// ClassConnection is an error of a single incoming connection, the listener
	// is fine and the accept can be retried right away.
	ClassConnection
	// ClassFatal is an error that stops accepting.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassTransient:
		return "transient"
	case ClassConnection:
		return "connection"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}
