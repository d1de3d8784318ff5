//go:build !unix

package accept

import "syscall"

// Accept errors on these platforms are classified only by the portable rules.
var (
	resourceExhaustionErrnos []syscall.Errno
	connectionErrnos         []syscall.Errno
	errnoHints               = map[syscall.Errno]hint{}
)
