package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	closed bool
}

func (f *fakeMessenger) Ask(request []byte, frameLength FrameLengthFunc) ([]byte, error) {
	return request, nil
}
func (f *fakeMessenger) Close()          { f.closed = true }
func (f *fakeMessenger) Available() bool { return !f.closed }

func TestClientsPool(t *testing.T) {
	dialed := 0
	cs, err := NewClients(1, func() (Messenger, error) {
		dialed++
		return &fakeMessenger{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dialed)

	m, err := cs.GetMessenger(context.Background())
	require.NoError(t, err)

	// pool exhausted, waiter times out
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cs.GetMessenger(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// waiter receives the released messenger
	got := make(chan Messenger, 1)
	go func() {
		w, err := cs.GetMessenger(context.Background())
		if err == nil {
			got <- w
		}
	}()
	time.Sleep(20 * time.Millisecond)
	cs.ReleaseMessenger(m)
	select {
	case w := <-got:
		assert.Same(t, m, w)
		cs.ReleaseMessenger(w)
	case <-time.After(time.Second):
		t.Fatal("waiter never received messenger")
	}

	cs.Destroy(context.Background())
	assert.True(t, m.(*fakeMessenger).closed)
	_, err = cs.GetMessenger(context.Background())
	assert.Error(t, err)
}

func TestTcpClientAsk(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		buf := make([]byte, 4)
		_, _ = server.Read(buf)
		// 分两段回复
		_, _ = server.Write([]byte{0x68, 0x03})
		_, _ = server.Write([]byte{0xAA, 0xBB, 0xCC, 0xFF})
	}()

	tc := &TcpClient{Timeout: time.Second, Tunnel: client}
	defer tc.Close()
	resp, err := tc.Ask([]byte{1, 2, 3, 4}, func(buf []byte) (int, error) {
		if len(buf) < 2 {
			return 0, nil
		}
		return 2 + int(buf[1]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x68, 0x03, 0xAA, 0xBB, 0xCC}, resp)
}

func TestSerialOptionsMode(t *testing.T) {
	o := DefaultSerialOptions()
	mode, err := o.Mode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)

	o.Parity = "X"
	_, err = o.Mode()
	assert.Error(t, err)
}
