// Package accept decides what to do when accepting a connection fails.
//
// Not every Accept error means the listener is broken. When the process or the
// system runs out of file descriptors Accept fails although the listening
// socket is healthy, returning the error would stop a server that would recover
// as soon as some connections are closed, and retrying in a tight loop would
// burn a CPU core and make the exhaustion worse. These errors are transient:
// the accept is retried after a delay that doubles on every consecutive
// failure up to a maximum, and goes back to the minimum after a success.
//
// Errors of a single peer (reset or aborted before the accept finished) are
// retried right away, the rest are fatal and returned to the caller.
package accept
