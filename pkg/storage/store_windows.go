//go:build windows

package storage

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func isEphemeralError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case windows.ERROR_SHARING_VIOLATION:
			return true
		}
	}
	return false
}
