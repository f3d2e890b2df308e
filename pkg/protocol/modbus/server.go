package modbus

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
	mbserver "github.com/simonvetter/modbus"
	"k8s.io/klog/v2"
)

var _ protocol.Handler = (*Server)(nil)
var _ protocol.SlaveRegistrar = (*Server)(nil)

// Server modbus slave simulating register banks. ModbusTcp listens through
// simonvetter/modbus, ModbusRtuOverTcp and ModbusRtu speak RTU frames on a tcp
// listener or a serial line.
type Server struct {
	*protocol.Base
	protocolType constant.ProtocolType
	options      *ServerOptions
	banks        *Banks

	tcp    *mbserver.ModbusServer
	stream *transport.StreamServer
}

func NewServer(protocolType constant.ProtocolType, name string, points *pointmanager.PointManager, captureCapacity int) *Server {
	return &Server{
		Base:         protocol.NewBase(name, points, captureCapacity),
		protocolType: protocolType,
		options:      DefaultServerOptions(),
		banks:        NewBanks(),
	}
}

func (s *Server) Capability() protocol.Capability {
	return protocol.NativeAsync
}

func (s *Server) RebuildOnMutation() bool {
	return false
}

func (s *Server) Options() *ServerOptions {
	return s.options
}

// Banks register images served to masters.
func (s *Server) Banks() *Banks {
	return s.banks
}

func (s *Server) Initialize(options map[string]interface{}) error {
	return s.InitializeWith(func() error {
		o, err := decodeServerOptions(options)
		if err != nil {
			return err
		}
		s.options = o
		s.banks = NewBanks(o.Slaves...)
		// 已有点位的当前值写入寄存器
		for _, p := range s.Points.All() {
			if err := s.seed(p); err != nil {
				klog.V(2).InfoS("Failed to seed point value", "handler", s.Name, "point", p.Code(), "error", err)
			}
		}
		return nil
	})
}

func (s *Server) seed(p point.Point) error {
	bank := s.banks.Ensure(p.Slave())
	return writeBank(bank, p, p.Base().RawValue())
}

func (s *Server) Start(ctx context.Context) error {
	return s.StartWith(ctx, func(ctx context.Context) error {
		var err error
		switch s.protocolType {
		case constant.ModbusTcp:
			err = s.startTcp()
		case constant.ModbusRtuOverTcp, constant.ModbusRtu:
			err = s.startStream()
		default:
			err = errors.Wrapf(constant.ErrProtocolType, "%s is not a modbus slave", s.protocolType)
		}
		if err != nil {
			return err
		}
		klog.V(1).InfoS("Modbus slave started", "handler", s.Name, "type", s.protocolType, "address", s.endpoint(), "slaves", s.banks.Slaves())
		return nil
	})
}

func (s *Server) endpoint() string {
	if s.protocolType == constant.ModbusRtu {
		return s.options.SerialPort
	}
	return s.options.Address()
}

func (s *Server) startTcp() error {
	server, err := mbserver.NewServer(&mbserver.ServerConfiguration{
		URL:        "tcp://" + s.options.Address(),
		Timeout:    s.options.IdleTimeout,
		MaxClients: s.options.MaxClients,
	}, &requestHandler{server: s})
	if err != nil {
		return errors.Wrap(err, "create modbus tcp server")
	}
	if err = server.Start(); err != nil {
		return errors.Wrapf(constant.ErrConnection, "listen %s: %v", s.options.Address(), err)
	}
	s.tcp = server
	return nil
}

func (s *Server) startStream() error {
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
	if s.protocolType == constant.ModbusRtu {
		// 读超时即帧间静默
		err = stream.ServeSerial(&s.options.SerialOptions, 50*time.Millisecond)
	} else {
		err = stream.ListenTcp(s.options.Address())
	}
	if err != nil {
		return err
	}
	s.stream = stream
	return nil
}

// consume answers every complete request frame in buf and returns the remainder.
func (s *Server) consume(buf []byte, write func([]byte) error) []byte {
	for {
		length, err := RequestLength(buf)
		if err != nil {
			s.Capture.RecordRx(buf, "unsupported request dropped")
			return nil
		}
		if length == 0 || len(buf) < length {
			return buf
		}
		frame := binutil.Dup(buf[:length])
		buf = buf[length:]
		s.Capture.RecordRx(frame, "request")
		resp, err := ProcessRTU(s.banks, frame)
		if err != nil {
			klog.V(2).InfoS("Failed to process request", "handler", s.Name, "error", err)
			continue
		}
		if resp == nil {
			continue
		}
		s.Capture.RecordTx(resp, "response")
		if err = write(resp); err != nil {
			klog.V(2).InfoS("Failed to write response", "handler", s.Name, "error", err)
			return nil
		}
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.StopWith(ctx, func(ctx context.Context) error {
		var err error
		if s.tcp != nil {
			err = s.tcp.Stop()
			s.tcp = nil
		}
		if s.stream != nil {
			s.stream.Close()
			s.stream = nil
		}
		klog.V(1).InfoS("Modbus slave stopped", "handler", s.Name)
		return err
	})
}

// Read loads the value of p from its slave bank.
func (s *Server) Read(ctx context.Context, p point.Point) (float64, error) {
	var v float64
	err := s.Guard(false, func() error {
		bank, ok := s.banks.Get(p.Slave())
		if !ok {
			return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", p.Slave())
		}
		raw, err := readBank(bank, p)
		if err != nil {
			return err
		}
		v = raw
		return nil
	})
	return v, err
}

// Write stores raw into the slave bank of p.
func (s *Server) Write(ctx context.Context, p point.Point, raw float64) error {
	return s.Guard(false, func() error {
		bank, ok := s.banks.Get(p.Slave())
		if !ok {
			return errors.Wrapf(constant.ErrInvalidSlave, "slave %d", p.Slave())
		}
		if err := writeBank(bank, p, raw); err != nil {
			return err
		}
		p.Base().SetRawValue(raw)
		return nil
	})
}

func (s *Server) AddPoints(ps []point.Point) error {
	return s.Guard(false, func() error {
		for _, p := range ps {
			if err := s.seed(p); err != nil {
				return errors.Wrapf(err, "point %s", p.Code())
			}
		}
		return nil
	})
}

// RemovePoints leaves the register image untouched.
func (s *Server) RemovePoints(ps []point.Point) error {
	return nil
}

func (s *Server) Slaves() []int {
	if s.banks == nil {
		return nil
	}
	return s.banks.Slaves()
}

func (s *Server) AddSlave(slave int) error {
	return s.Guard(false, func() error {
		return s.banks.Add(slave)
	})
}
