/*
Package log has the logger used by the listeners and limiters. Components log
through the Logger interface so the application decides the implementation,
by default nothing is logged.
*/
package log

// KV is a set of key-value pairs attached to a logger.
type KV map[string]interface{}

// Logger knows how to log.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	// WithKV returns a new logger that will log the key-values on every entry.
	WithKV(kv KV) Logger
}

// Dummy is a logger that doesn't log anything.
var Dummy Logger = dummy{}

type dummy struct{}

func (d dummy) Infof(format string, args ...interface{})    {}
func (d dummy) Warningf(format string, args ...interface{}) {}
func (d dummy) Errorf(format string, args ...interface{})   {}
func (d dummy) Debugf(format string, args ...interface{})   {}
func (d dummy) WithKV(_ KV) Logger                          { return d }
