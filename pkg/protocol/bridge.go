package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

const (
	DefaultBridgeWorkers  = 4
	DefaultHandoffTimeout = 2 * time.Second
)

const (
	callPending int32 = iota
	callCommitted
	callAbandoned
)

type callKey struct{}

type outcome struct {
	value interface{}
	err   error
}

type task struct {
	ctx    context.Context
	fn     func(ctx context.Context) (interface{}, error)
	result chan outcome
}

// Bridge hands blocking calls to a bounded pool of workers. The handoff and the
// execution share one timeout, exceeding it surfaces as ErrHandoffTimeout.
type Bridge struct {
	tasks   chan task
	done    chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

func NewBridge(workers int, timeout time.Duration) *Bridge {
	if workers <= 0 {
		workers = DefaultBridgeWorkers
	}
	if timeout <= 0 {
		timeout = DefaultHandoffTimeout
	}
	b := &Bridge{
		tasks:   make(chan task),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.work()
	}
	return b
}

func (b *Bridge) work() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case t := <-b.tasks:
			v, err := run(t.ctx, t.fn)
			t.result <- outcome{value: v, err: err}
		}
	}
}

func run(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			klog.V(2).InfoS("Recovered from blocking call", "panic", r)
			err = fmt.Errorf("blocking call panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Commit claims the call running under ctx for publishing its result. It fails once
// the caller stopped waiting. Calls made outside a bridge always commit.
func Commit(ctx context.Context) bool {
	state, ok := ctx.Value(callKey{}).(*atomic.Int32)
	if !ok {
		return true
	}
	return state.CAS(callPending, callCommitted) || state.Load() == callCommitted
}

// Do runs fn on a worker and waits for its value. fn gets a context that is cancelled
// once the caller returns. A fn that outlives the caller keeps running on its worker
// but can no longer Commit, its result is dropped.
func (b *Bridge) Do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	state := atomic.NewInt32(callPending)
	callCtx, cancel := context.WithCancel(context.WithValue(ctx, callKey{}, state))
	defer cancel()

	t := task{ctx: callCtx, fn: fn, result: make(chan outcome, 1)}
	select {
	case b.tasks <- t:
	case <-b.done:
		return nil, constant.ErrBridgeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errors.Wrapf(constant.ErrHandoffTimeout, "no worker within %s", b.timeout)
	}

	var err error
	select {
	case o := <-t.result:
		return o.value, o.err
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = errors.Wrapf(constant.ErrHandoffTimeout, "call exceeded %s", b.timeout)
	}
	if state.CAS(callPending, callAbandoned) {
		return nil, err
	}
	// fn already committed, its result is about to arrive
	o := <-t.result
	return o.value, o.err
}

// Call is Do for calls without a value.
func (b *Bridge) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// Invoke is Do with a typed value.
func Invoke[T any](ctx context.Context, b *Bridge, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := b.Do(ctx, func(ctx context.Context) (interface{}, error) {
		v, err := fn(ctx)
		return v, err
	})
	out, _ := v.(T)
	return out, err
}

// Close stops the workers after their current call returns.
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}
