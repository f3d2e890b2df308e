package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopUninitialized(t *testing.T) {
	b := NewBase("test", pointmanager.New(), 10)
	err := b.StopWith(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, constant.ErrHandlerNotInitialized)
	assert.Equal(t, Uninitialized, b.State())
}

func TestLifecycle(t *testing.T) {
	b := NewBase("test", pointmanager.New(), 10)
	ctx := context.Background()

	assert.ErrorIs(t, b.StartWith(ctx, func(ctx context.Context) error { return nil }), constant.ErrHandlerNotInitialized)

	require.NoError(t, b.InitializeWith(func() error { return nil }))
	assert.Equal(t, Initialized, b.State())

	// stop before start is a no-op
	stopped := false
	require.NoError(t, b.StopWith(ctx, func(ctx context.Context) error { stopped = true; return nil }))
	assert.False(t, stopped)
	assert.Equal(t, Initialized, b.State())

	boom := errors.New("bind failed")
	assert.ErrorIs(t, b.StartWith(ctx, func(ctx context.Context) error { return boom }), boom)
	assert.Equal(t, Initialized, b.State())

	require.NoError(t, b.StartWith(ctx, func(ctx context.Context) error { return nil }))
	assert.Equal(t, Running, b.State())
	assert.ErrorIs(t, b.InitializeWith(func() error { return nil }), constant.ErrChannelRunning)

	require.NoError(t, b.StopWith(ctx, func(ctx context.Context) error { stopped = true; return nil }))
	assert.True(t, stopped)
	assert.Equal(t, Stopped, b.State())

	// restart after stop
	require.NoError(t, b.StartWith(ctx, func(ctx context.Context) error { return nil }))
	assert.Equal(t, Running, b.State())
}

func TestGuard(t *testing.T) {
	b := NewBase("test", pointmanager.New(), 10)
	noop := func() error { return nil }
	assert.ErrorIs(t, b.Guard(false, noop), constant.ErrHandlerNotInitialized)

	require.NoError(t, b.InitializeWith(noop))
	assert.NoError(t, b.Guard(false, noop))
	assert.ErrorIs(t, b.Guard(true, noop), constant.ErrHandlerNotRunning)
}

func TestStopWaitsForInflightIO(t *testing.T) {
	b := NewBase("test", pointmanager.New(), 10)
	ctx := context.Background()
	require.NoError(t, b.InitializeWith(func() error { return nil }))
	require.NoError(t, b.StartWith(ctx, func(ctx context.Context) error { return nil }))

	entered := make(chan struct{})
	release := make(chan struct{})
	var ioDone bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Guard(true, func() error {
			close(entered)
			<-release
			ioDone = true
			return nil
		})
	}()
	<-entered

	stopCh := make(chan bool)
	go func() {
		_ = b.StopWith(ctx, func(ctx context.Context) error {
			stopCh <- ioDone
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.True(t, <-stopCh)
	wg.Wait()
}
