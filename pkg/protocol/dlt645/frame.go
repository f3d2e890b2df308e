package dlt645

import (
	"encoding/hex"
	"strings"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

// 68 A0..A5 68 C L DATA CS 16, 数据域逐字节 +0x33
const (
	startByte    byte = 0x68
	endByte      byte = 0x16
	preambleByte byte = 0xFE
	dataOffset   byte = 0x33
	headerLength      = 10
	minLength         = 12
)

const (
	ControlRead       byte = 0x11
	ControlReadAck    byte = 0x91
	ControlReadError  byte = 0xD1
	ControlWrite      byte = 0x14
	ControlWriteAck   byte = 0x94
	ControlWriteError byte = 0xD4
)

// 异常应答错误信息字
const (
	ErrorOther        byte = 0x01
	ErrorNoData       byte = 0x02
	ErrorUnauthorized byte = 0x04
)

// Preamble wakes up meters before a request.
var Preamble = []byte{preambleByte, preambleByte, preambleByte, preambleByte}

// Address meter address in wire order, A0 first.
type Address [6]byte

var BroadcastAddress = Address{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}

// ParseAddress parses the 12 digit printed meter address, A5 first.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if len(s) != 12 {
		return a, errors.Wrapf(constant.ErrAddressFormat, "meter address %q must have 12 digits", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, errors.Wrapf(constant.ErrAddressFormat, "meter address %q", s)
	}
	for i := range a {
		a[i] = b[len(b)-1-i]
	}
	return a, nil
}

func (a Address) String() string {
	b := make([]byte, len(a))
	for i := range a {
		b[i] = a[len(a)-1-i]
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

type Frame struct {
	Address Address
	Control byte
	Data    []byte // 已减 0x33
}

// Encode renders f without preamble.
func Encode(f *Frame) []byte {
	buf := make([]byte, 0, minLength+len(f.Data))
	buf = append(buf, startByte)
	buf = append(buf, f.Address[:]...)
	buf = append(buf, startByte, f.Control, byte(len(f.Data)))
	for _, d := range f.Data {
		buf = append(buf, d+dataOffset)
	}
	buf = append(buf, checksum(buf))
	return append(buf, endByte)
}

func checksum(buf []byte) byte {
	var cs byte
	for _, b := range buf {
		cs += b
	}
	return cs
}

func skipPreamble(buf []byte) int {
	i := 0
	for i < len(buf) && buf[i] == preambleByte {
		i++
	}
	return i
}

// FrameLength length of the frame at the start of buf including its preamble, 0
// while the header is incomplete.
func FrameLength(buf []byte) (int, error) {
	pre := skipPreamble(buf)
	frame := buf[pre:]
	if len(frame) == 0 {
		return 0, nil
	}
	if frame[0] != startByte {
		return 0, errors.Wrapf(constant.ErrProtocolViolation, "unexpected start byte %#02x", frame[0])
	}
	if len(frame) < headerLength {
		return 0, nil
	}
	if frame[7] != startByte {
		return 0, errors.Wrapf(constant.ErrProtocolViolation, "unexpected second start byte %#02x", frame[7])
	}
	return pre + minLength + int(frame[9]), nil
}

// Decode parses one complete frame, leading FE bytes allowed.
func Decode(buf []byte) (*Frame, error) {
	length, err := FrameLength(buf)
	if err != nil {
		return nil, err
	}
	if length == 0 || len(buf) < length {
		return nil, errors.Wrapf(constant.ErrProtocolViolation, "incomplete frame % X", buf)
	}
	frame := buf[skipPreamble(buf):length]
	n := len(frame)
	if frame[n-1] != endByte {
		return nil, errors.Wrapf(constant.ErrProtocolViolation, "unexpected end byte %#02x", frame[n-1])
	}
	if cs := checksum(frame[:n-2]); cs != frame[n-2] {
		return nil, errors.Wrapf(constant.ErrProtocolViolation, "checksum %#02x, want %#02x", frame[n-2], cs)
	}
	f := &Frame{Control: frame[8], Data: make([]byte, int(frame[9]))}
	copy(f.Address[:], frame[1:7])
	for i := range f.Data {
		f.Data[i] = frame[headerLength+i] - dataOffset
	}
	return f, nil
}
