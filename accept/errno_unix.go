//go:build unix

package accept

import (
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	resourceExhaustionErrnos = []syscall.Errno{unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM}
	connectionErrnos         = []syscall.Errno{unix.ECONNABORTED, unix.ECONNRESET, unix.ECONNREFUSED}

	errnoHints = map[syscall.Errno]hint{
		unix.EMFILE: {text: "Increase per-process open file limit", anchor: "EMFILE"},
		unix.ENFILE: {text: "Increase system open file limit", anchor: "ENFILE"},
	}
)
