package fileutil

import "os"

// Releaser releases an acquired file lock.
type Releaser interface {
	Release() error
}

// NewLock takes a non blocking exclusive lock on f, a held lock fails at once.
func NewLock(f *os.File) (Releaser, error) {
	l := &fileLock{f: f}
	if err := l.lock(); err != nil {
		return nil, err
	}
	return l, nil
}

type fileLock struct {
	f *os.File
}

func (l *fileLock) Release() error {
	return l.unlock()
}
