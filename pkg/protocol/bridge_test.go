package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeCall(t *testing.T) {
	b := NewBridge(2, time.Second)
	defer b.Close()

	called := false
	assert.NoError(t, b.Call(context.Background(), func(ctx context.Context) error { called = true; return nil }))
	assert.True(t, called)

	boom := errors.New("boom")
	assert.ErrorIs(t, b.Call(context.Background(), func(ctx context.Context) error { return boom }), boom)
}

func TestBridgeTimeout(t *testing.T) {
	b := NewBridge(1, 50*time.Millisecond)
	release := make(chan struct{})
	defer func() {
		close(release)
		b.Close()
	}()

	start := time.Now()
	err := b.Call(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, constant.ErrHandoffTimeout)
	assert.Less(t, time.Since(start), time.Second)

	// the only worker is still busy, so the handoff itself times out
	err = b.Call(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, constant.ErrHandoffTimeout)
}

func TestBridgeRecoversPanic(t *testing.T) {
	b := NewBridge(1, time.Second)
	defer b.Close()
	err := b.Call(context.Background(), func(ctx context.Context) error { panic("bad frame") })
	assert.Error(t, err)
	assert.NoError(t, b.Call(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestBridgeClosed(t *testing.T) {
	b := NewBridge(1, time.Second)
	b.Close()
	assert.ErrorIs(t, b.Call(context.Background(), func(ctx context.Context) error { return nil }), constant.ErrBridgeClosed)
}

func TestBridgeContextCanceled(t *testing.T) {
	b := NewBridge(1, time.Second)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Call(ctx, func(ctx context.Context) error { time.Sleep(100 * time.Millisecond); return nil })
	assert.Error(t, err)
}

func TestBridgeInvoke(t *testing.T) {
	b := NewBridge(1, time.Second)
	defer b.Close()

	v, err := Invoke(context.Background(), b, func(ctx context.Context) (float64, error) {
		assert.True(t, Commit(ctx))
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	assert.True(t, Commit(context.Background()))
}

func TestBridgeAbandonedCallCannotCommit(t *testing.T) {
	b := NewBridge(1, 50*time.Millisecond)
	defer b.Close()

	committed := make(chan bool, 1)
	v, err := Invoke(context.Background(), b, func(ctx context.Context) (float64, error) {
		<-ctx.Done()
		committed <- Commit(ctx)
		return 42, nil
	})
	assert.ErrorIs(t, err, constant.ErrHandoffTimeout)
	assert.Equal(t, 0.0, v)
	assert.False(t, <-committed)
}
