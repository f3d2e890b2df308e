//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLockExclusive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "points.json")
	require.NoError(t, os.WriteFile(p, []byte("{}"), 0640))

	f1, err := os.OpenFile(p, os.O_RDWR, 0640)
	require.NoError(t, err)
	defer f1.Close()
	f2, err := os.OpenFile(p, os.O_RDWR, 0640)
	require.NoError(t, err)
	defer f2.Close()

	l1, err := NewLock(f1)
	require.NoError(t, err)

	_, err = NewLock(f2)
	require.Error(t, err)

	require.NoError(t, l1.Release())
	l2, err := NewLock(f2)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}
