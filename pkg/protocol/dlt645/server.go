package dlt645

import (
	"context"
	"time"

	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/protocol/transport"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/utils/binutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var _ protocol.Handler = (*Server)(nil)

// 写命令数据域: DI + 密码 + 操作者代码 + 数据
const (
	passwordLength = 4
	operatorLength = 4
)

// Server simulated meter answering read and write requests for its own address and
// the broadcast address.
type Server struct {
	*protocol.Base
	options *Options
	address Address
	table   *Table
	stream  *transport.StreamServer
}

func NewServer(name string, points *pointmanager.PointManager, captureCapacity int) *Server {
	return &Server{
		Base:    protocol.NewBase(name, points, captureCapacity),
		options: DefaultServerOptions(),
		table:   NewTable(),
	}
}

func (s *Server) Capability() protocol.Capability {
	return protocol.NativeAsync
}

func (s *Server) RebuildOnMutation() bool {
	return false
}

func (s *Server) Options() *Options {
	return s.options
}

func (s *Server) Table() *Table {
	return s.table
}

func (s *Server) Initialize(options map[string]interface{}) error {
	return s.InitializeWith(func() error {
		o, err := decodeOptions(options, DefaultServerOptions())
		if err != nil {
			return err
		}
		address, _ := ParseAddress(o.MeterAddress)
		s.options = o
		s.address = address
		s.table = NewTable()
		for _, p := range s.Points.All() {
			if err := s.table.Add(p); err != nil {
				klog.V(2).InfoS("Failed to register point", "handler", s.Name, "point", p.Code(), "error", err)
			}
		}
		return nil
	})
}

func (s *Server) Start(ctx context.Context) error {
	return s.StartWith(ctx, func(ctx context.Context) error {
		stream := &transport.StreamServer{
			Name:        s.Name,
			MaxClients:  s.options.MaxClients,
			IdleTimeout: s.options.IdleTimeout,
			Consume:     s.consume,
			Dropped: func(buf []byte) {
				s.Capture.RecordRx(buf, "incomplete frame dropped")
			},
		}
		var err error
		if s.options.Serial() {
			err = stream.ServeSerial(&s.options.SerialOptions, 100*time.Millisecond)
		} else {
			err = stream.ListenTcp(s.options.Address())
		}
		if err != nil {
			return err
		}
		s.stream = stream
		klog.V(1).InfoS("DL/T645 meter started", "handler", s.Name, "meter", s.address, "transport", s.options.Transport, "points", s.table.Len())
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	return s.StopWith(ctx, func(ctx context.Context) error {
		if s.stream != nil {
			s.stream.Close()
			s.stream = nil
		}
		klog.V(1).InfoS("DL/T645 meter stopped", "handler", s.Name)
		return nil
	})
}

func (s *Server) consume(buf []byte, write func([]byte) error) []byte {
	for {
		length, err := FrameLength(buf)
		if err != nil {
			s.Capture.RecordRx(buf, "garbage dropped")
			return nil
		}
		if length == 0 || len(buf) < length {
			return buf
		}
		raw := binutil.Dup(buf[:length])
		buf = buf[length:]
		s.Capture.RecordRx(raw, "request")
		request, err := Decode(raw)
		if err != nil {
			klog.V(2).InfoS("Failed to decode request", "handler", s.Name, "error", err)
			continue
		}
		response := s.Process(request)
		if response == nil {
			continue
		}
		out := Encode(response)
		s.Capture.RecordTx(out, "response")
		if err = write(out); err != nil {
			klog.V(2).InfoS("Failed to write response", "handler", s.Name, "error", err)
			return nil
		}
	}
}

// Process answers one request frame, nil when the frame is not meant for this meter.
func (s *Server) Process(request *Frame) *Frame {
	if request.Address != s.address && request.Address != BroadcastAddress {
		return nil
	}
	switch request.Control {
	case ControlRead:
		return s.read(request)
	case ControlWrite:
		return s.write(request)
	default:
		klog.V(3).InfoS("Unsupported control code", "handler", s.Name, "control", request.Control)
		return nil
	}
}

func (s *Server) reply(control byte, data []byte) *Frame {
	return &Frame{Address: s.address, Control: control, Data: data}
}

func (s *Server) read(request *Frame) *Frame {
	if len(request.Data) < identifierLength {
		return s.reply(ControlReadError, []byte{ErrorOther})
	}
	di := request.Data[:identifierLength]
	_, raw, ok := s.table.Get(di)
	if !ok {
		return s.reply(ControlReadError, []byte{ErrorNoData})
	}
	value, err := encodeValue(raw, s.options.DataLength)
	if err != nil {
		klog.V(2).InfoS("Failed to encode value", "handler", s.Name, "identifier", identifierKey(di), "error", err)
		return s.reply(ControlReadError, []byte{ErrorOther})
	}
	return s.reply(ControlReadAck, append(binutil.Dup(di), value...))
}

func (s *Server) write(request *Frame) *Frame {
	offset := identifierLength + passwordLength + operatorLength
	if len(request.Data) < offset+s.options.DataLength {
		return s.reply(ControlWriteError, []byte{ErrorOther})
	}
	di := request.Data[:identifierLength]
	p, _, ok := s.table.Get(di)
	if !ok {
		return s.reply(ControlWriteError, []byte{ErrorNoData})
	}
	if !writable(p) {
		return s.reply(ControlWriteError, []byte{ErrorUnauthorized})
	}
	v, err := DecodeBCD(request.Data[offset : offset+s.options.DataLength])
	if err != nil {
		return s.reply(ControlWriteError, []byte{ErrorOther})
	}
	if err = checkLimit(p, float64(v)); err != nil {
		return s.reply(ControlWriteError, []byte{ErrorOther})
	}
	s.table.Set(di, float64(v))
	klog.V(4).InfoS("Meter value written by master", "handler", s.Name, "point", p.Code(), "raw", v)
	return s.reply(ControlWriteAck, nil)
}

// Read returns the value the meter would answer for p.
func (s *Server) Read(ctx context.Context, p point.Point) (float64, error) {
	var v float64
	err := s.Guard(false, func() error {
		di, err := Identifier(p)
		if err != nil {
			return err
		}
		_, raw, ok := s.table.Get(di)
		if !ok {
			return errors.Wrapf(constant.ErrPointNotFound, "point %s", p.Code())
		}
		v = raw
		return nil
	})
	return v, err
}

func (s *Server) Write(ctx context.Context, p point.Point, raw float64) error {
	return s.Guard(false, func() error {
		di, err := Identifier(p)
		if err != nil {
			return err
		}
		if _, err = encodeValue(raw, s.options.DataLength); err != nil {
			return err
		}
		if _, ok := s.table.Set(di, raw); !ok {
			return errors.Wrapf(constant.ErrPointNotFound, "point %s", p.Code())
		}
		return nil
	})
}

func (s *Server) AddPoints(ps []point.Point) error {
	return s.Guard(false, func() error {
		for _, p := range ps {
			if err := s.table.Add(p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Server) RemovePoints(ps []point.Point) error {
	return s.Guard(false, func() error {
		for _, p := range ps {
			s.table.Remove(p)
		}
		return nil
	})
}

func encodeValue(raw float64, length int) ([]byte, error) {
	v, err := rawToInt(raw)
	if err != nil {
		return nil, err
	}
	return EncodeBCD(v, length)
}

func checkLimit(p point.Point, raw float64) error {
	t, ok := point.TransformOf(p)
	if !ok {
		return nil
	}
	return t.CheckLimit(t.Engineering(raw))
}

// matches reports whether a response came from the addressed meter.
func matches(request, response Address) bool {
	return request == BroadcastAddress || request == response
}

// 仅遥调与遥控点允许主站写入
func writable(p point.Point) bool {
	return p.Kind() == constant.Setpoint || p.Kind() == constant.Control
}
