package transport

import (
	"container/list"
	"context"
	"sync"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Clients bounded pool of messengers. Callers block for an idle messenger until
// ctx is done.
type Clients struct {
	dial     func() (Messenger, error)
	idle     *list.List
	mu       sync.Mutex
	waiters  map[uint64]chan Messenger
	nextWait uint64
	closed   bool
}

// NewClients dials max messengers up front.
func NewClients(max int, newMessenger func() (Messenger, error)) (*Clients, error) {
	if max <= 0 {
		max = 1
	}
	ms := list.New()
	for i := 0; i < max; i++ {
		m, err := newMessenger()
		if err != nil {
			for e := ms.Front(); e != nil; e = e.Next() {
				e.Value.(Messenger).Close()
			}
			return nil, err
		}
		ms.PushBack(m)
	}
	return &Clients{
		dial:     newMessenger,
		idle:     ms,
		waiters:  make(map[uint64]chan Messenger),
		nextWait: 1,
	}, nil
}

func (t *Clients) GetMessenger(ctx context.Context) (Messenger, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.Wrap(constant.ErrConnection, "clients closed")
	}
	if front := t.idle.Front(); front != nil {
		t.idle.Remove(front)
		t.mu.Unlock()
		return front.Value.(Messenger), nil
	}

	mCh := make(chan Messenger, 1)
	key := t.nextRequestKey()
	t.waiters[key] = mCh
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.waiters, key)
		t.mu.Unlock()
		select {
		default:
		case m, ok := <-mCh:
			if ok {
				t.ReleaseMessenger(m)
			}
		}
		return nil, ctx.Err()
	case m, ok := <-mCh:
		if !ok {
			return nil, errors.Wrap(constant.ErrConnection, "clients closed")
		}
		return m, nil
	}
}

func (t *Clients) ReleaseMessenger(messenger Messenger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		messenger.Close()
		return
	}
	// 优先交给等待最久的调用方
	if len(t.waiters) > 0 {
		oldest := uint64(0)
		for key := range t.waiters {
			if oldest == 0 || key < oldest {
				oldest = key
			}
		}
		mCh := t.waiters[oldest]
		delete(t.waiters, oldest)
		mCh <- messenger
		return
	}
	t.idle.PushBack(messenger)
}

// Renew replaces a broken messenger with a freshly dialed one.
func (t *Clients) Renew(broken Messenger) (Messenger, error) {
	broken.Close()
	m, err := t.dial()
	if err != nil {
		klog.V(2).InfoS("Failed to renew messenger", "error", err)
		return nil, err
	}
	return m, nil
}

func (t *Clients) Destroy(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for e := t.idle.Front(); e != nil; e = e.Next() {
		e.Value.(Messenger).Close()
	}
	t.idle.Init()

	for key, mCh := range t.waiters {
		close(mCh)
		delete(t.waiters, key)
	}
}

func (t *Clients) nextRequestKey() uint64 {
	next := t.nextWait
	t.nextWait++
	return next
}
