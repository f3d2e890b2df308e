package protocol

import (
	"context"
	"sync"

	"emssimulate/pkg/capture"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

// Base lifecycle bookkeeping shared by handlers. I/O runs under the read lock, Stop
// takes the write lock so resources are never released under an in-flight call.
type Base struct {
	Name    string
	Points  *pointmanager.PointManager
	Capture *capture.Capture

	state atomic.Int32
	mu    sync.RWMutex
}

func NewBase(name string, points *pointmanager.PointManager, captureCapacity int) *Base {
	return &Base{
		Name:    name,
		Points:  points,
		Capture: capture.New(captureCapacity),
	}
}

func (b *Base) State() State {
	return State(b.state.Load())
}

func (b *Base) setState(s State) {
	old := State(b.state.Swap(int32(s)))
	if old != s {
		klog.V(1).InfoS("Protocol handler state changed", "handler", b.Name, "from", old, "to", s)
	}
}

func (b *Base) Messages(limit int) []capture.Message {
	return b.Capture.Messages(limit)
}

func (b *Base) ClearMessages() {
	b.Capture.Clear()
}

// InitializeWith runs init unless the handler is running.
func (b *Base) InitializeWith(init func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() == Running {
		return errors.Wrap(constant.ErrChannelRunning, "initialize")
	}
	if err := init(); err != nil {
		return err
	}
	b.setState(Initialized)
	return nil
}

// StartWith runs start and moves to Running on success. Starting a running handler
// is a no-op.
func (b *Base) StartWith(ctx context.Context, start func(ctx context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.State() {
	case Uninitialized:
		return constant.ErrHandlerNotInitialized
	case Running:
		return nil
	}
	if err := start(ctx); err != nil {
		b.setState(Initialized)
		return err
	}
	b.setState(Running)
	return nil
}

// StopWith waits for in-flight I/O, then runs stop.
func (b *Base) StopWith(ctx context.Context, stop func(ctx context.Context) error) error {
	switch b.State() {
	case Uninitialized:
		return constant.ErrHandlerNotInitialized
	case Initialized, Stopped:
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Running {
		return nil
	}
	err := stop(ctx)
	b.setState(Stopped)
	return err
}

// Guard runs fn under the I/O read lock. requireRunning rejects calls unless the
// handler is running, local table access only needs it initialized.
func (b *Base) Guard(requireRunning bool, fn func() error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch s := b.State(); {
	case s == Uninitialized:
		return constant.ErrHandlerNotInitialized
	case requireRunning && s != Running:
		return constant.ErrHandlerNotRunning
	}
	return fn()
}
