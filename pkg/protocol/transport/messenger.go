package transport

import (
	"net"
	"time"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
)

var _ Messenger = (*TcpClient)(nil)
var _ Messenger = (*SerialClient)(nil)

// FrameLengthFunc returns the total length of the frame at the start of buf, 0 while
// more bytes are needed.
type FrameLengthFunc func(buf []byte) (int, error)

type Messenger interface {
	Ask(request []byte, frameLength FrameLengthFunc) ([]byte, error)
	Close()
	Available() bool
}

type TcpClient struct {
	Timeout time.Duration
	Tunnel  net.Conn
}

func (tc *TcpClient) Available() bool {
	return tc.Tunnel != nil
}

func (tc *TcpClient) Close() {
	if tc.Tunnel != nil {
		_ = tc.Tunnel.Close()
	}
}

func (tc *TcpClient) Ask(request []byte, frameLength FrameLengthFunc) ([]byte, error) {
	if _, err := tc.Tunnel.Write(request); err != nil {
		klog.V(2).InfoS("Failed to ask message", "error", err)
		return nil, errors.Wrap(constant.ErrConnection, err.Error())
	}
	// 设置读超时
	if err := tc.Tunnel.SetReadDeadline(time.Now().Add(tc.Timeout)); err != nil {
		klog.V(2).InfoS("Tcp connect timeout", "error", err)
		return nil, err
	}
	return readFrame(func(buf []byte) (int, error) {
		n, err := tc.Tunnel.Read(buf)
		if err != nil {
			return n, errors.Wrap(constant.ErrConnection, err.Error())
		}
		return n, nil
	}, frameLength)
}

type SerialClient struct {
	Timeout time.Duration
	Port    serial.Port
}

func (sc *SerialClient) Available() bool {
	return sc.Port != nil
}

func (sc *SerialClient) Close() {
	if sc.Port != nil {
		_ = sc.Port.Close()
	}
}

func (sc *SerialClient) Ask(request []byte, frameLength FrameLengthFunc) ([]byte, error) {
	rql, err := sc.Port.Write(request)
	if err != nil {
		klog.V(2).InfoS("Failed to write byte to series port", "error", err)
		return nil, errors.Wrap(constant.ErrConnection, err.Error())
	}
	klog.V(5).InfoS("Succeed to write byte to series port", "bytes", request, "length", rql)
	// 设置读超时
	if err = sc.Port.SetReadTimeout(sc.Timeout); err != nil {
		klog.V(2).InfoS("Serial port connect timeout", "error", err)
		return nil, err
	}
	return readFrame(func(buf []byte) (int, error) {
		n, err := sc.Port.Read(buf)
		if err != nil {
			return n, errors.Wrap(constant.ErrConnection, err.Error())
		}
		if n == 0 {
			return 0, errors.Wrap(constant.ErrConnection, "serial read timeout")
		}
		return n, nil
	}, frameLength)
}

func readFrame(read func([]byte) (int, error), frameLength FrameLengthFunc) ([]byte, error) {
	buf := make([]byte, 256)
	frame := make([]byte, 0, 256)
	for {
		n, err := read(buf)
		frame = append(frame, buf[:n]...)
		if length, lerr := frameLength(frame); lerr != nil {
			return nil, lerr
		} else if length > 0 && len(frame) >= length {
			return frame[:length], nil
		}
		if err != nil {
			return nil, err
		}
	}
}
