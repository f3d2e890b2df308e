//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package fileutil

import "golang.org/x/sys/unix"

func (l *fileLock) lock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (l *fileLock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
