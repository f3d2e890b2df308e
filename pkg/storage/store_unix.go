//go:build !windows

package storage

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func isEphemeralError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.EBUSY, unix.EINTR:
			return true
		}
	}
	return false
}
