//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package fileutil

import "errors"

var errUnsupportedLock = errors.New("file lock unsupported on this platform")

func (l *fileLock) lock() error { return errUnsupportedLock }

func (l *fileLock) unlock() error { return errUnsupportedLock }
