package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

// ConsumeFunc answers every complete request in buf through write and returns the
// unconsumed remainder.
type ConsumeFunc func(buf []byte, write func([]byte) error) []byte

// StreamServer serves a byte stream protocol over tcp connections or one serial line.
type StreamServer struct {
	Name        string
	MaxClients  uint
	IdleTimeout time.Duration
	Consume     ConsumeFunc

	// Dropped called with bytes discarded after a serial inter-frame gap.
	Dropped func(buf []byte)

	listener net.Listener
	port     serial.Port
	conns    map[net.Conn]struct{}
	connMux  sync.Mutex
	clients  atomic.Int32
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// ListenTcp accepts masters on address.
func (s *StreamServer) ListenTcp(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(constant.ErrConnection, "listen %s: %v", address, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.conns = make(map[net.Conn]struct{})
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()
	return nil
}

// ServeSerial opens the serial line and answers requests on it. Bytes left without
// a complete frame after a read timeout of silence are dropped.
func (s *StreamServer) ServeSerial(o *SerialOptions, silence time.Duration) error {
	port, err := OpenSerial(o)
	if err != nil {
		return err
	}
	if err = port.SetReadTimeout(silence); err != nil {
		_ = port.Close()
		return errors.Wrapf(constant.ErrConnection, "configure %s: %v", o.SerialPort, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.port = port
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serveSerial(ctx, port)
	}()
	return nil
}

func (s *StreamServer) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			klog.V(2).InfoS("Failed to accept connection", "server", s.Name, "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if s.MaxClients > 0 && uint(s.clients.Load()) >= s.MaxClients {
			klog.V(2).InfoS("Too many clients, connection refused", "server", s.Name, "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		s.connMux.Lock()
		s.conns[conn] = struct{}{}
		s.connMux.Unlock()
		s.clients.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.dropConn(conn)
			s.serveConn(conn)
		}()
	}
}

func (s *StreamServer) dropConn(conn net.Conn) {
	s.connMux.Lock()
	delete(s.conns, conn)
	s.connMux.Unlock()
	s.clients.Dec()
	_ = conn.Close()
}

func (s *StreamServer) serveConn(conn net.Conn) {
	klog.V(4).InfoS("Master connected", "server", s.Name, "remote", conn.RemoteAddr())
	buf := make([]byte, 512)
	var pending []byte
	for {
		if s.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			pending = s.Consume(append(pending, buf[:n]...), func(resp []byte) error {
				_, werr := conn.Write(resp)
				return werr
			})
		}
		if err != nil {
			klog.V(4).InfoS("Master disconnected", "server", s.Name, "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (s *StreamServer) serveSerial(ctx context.Context, port serial.Port) {
	buf := make([]byte, 256)
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := port.Read(buf)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				klog.V(2).InfoS("Failed to read serial port", "server", s.Name, "error", err)
			}
			return
		}
		if n == 0 {
			// 帧间静默, 丢弃残帧
			if len(pending) > 0 && s.Dropped != nil {
				s.Dropped(pending)
			}
			pending = nil
			continue
		}
		pending = s.Consume(append(pending, buf[:n]...), func(resp []byte) error {
			_, werr := port.Write(resp)
			return werr
		})
	}
}

// Clients number of connected tcp masters.
func (s *StreamServer) Clients() int {
	return int(s.clients.Load())
}

// Close stops accepting, drops every connection and waits for the serving goroutines.
func (s *StreamServer) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.connMux.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connMux.Unlock()
		s.listener = nil
	}
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.wg.Wait()
}
