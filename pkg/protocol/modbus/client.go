package modbus

import (
	"context"
	"sync"

	"emssimulate/pkg/codec"
	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/utils/binutil"
	mb "github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

var _ protocol.Handler = (*Client)(nil)
var _ protocol.Connector = (*Client)(nil)

// handlerWithConn goburrow client handler with connection lifecycle.
type handlerWithConn interface {
	mb.ClientHandler
	Connect() error
	Close() error
}

var rtuParity = map[constant.Parity]string{
	constant.NoParity:   "N",
	constant.OddParity:  "O",
	constant.EvenParity: "E",
}

var rtuStopBits = map[constant.StopBits]int{
	constant.OneStopBit:  1,
	constant.TwoStopBits: 2,
}

// Client modbus master reading and writing a remote slave. goburrow calls block, the
// device schedules them through a bridge.
type Client struct {
	*protocol.Base
	protocolType constant.ProtocolType
	options      *ClientOptions

	handler   handlerWithConn
	setSlave  func(slave byte)
	client    mb.Client
	ioMux     sync.Mutex
	connected atomic.Bool
}

func NewClient(protocolType constant.ProtocolType, name string, points *pointmanager.PointManager, captureCapacity int) *Client {
	return &Client{
		Base:         protocol.NewBase(name, points, captureCapacity),
		protocolType: protocolType,
		options:      DefaultClientOptions(),
	}
}

func (c *Client) Capability() protocol.Capability {
	return protocol.BlockingWrapped
}

func (c *Client) RebuildOnMutation() bool {
	return false
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Options() *ClientOptions {
	return c.options
}

func (c *Client) Initialize(options map[string]interface{}) error {
	return c.InitializeWith(func() error {
		o, err := decodeClientOptions(options)
		if err != nil {
			return err
		}
		c.options = o
		return nil
	})
}

func (c *Client) newHandler() (handlerWithConn, func(byte), error) {
	logger := newLogger(c.Name, c.Capture)
	switch c.protocolType {
	case constant.ModbusTcpClient:
		h := mb.NewTCPClientHandler(c.options.Address())
		h.Timeout = c.options.Timeout
		h.Logger = logger
		return h, func(slave byte) { h.SlaveId = slave }, nil
	case constant.ModbusRtuClient:
		parity, err := c.options.ParsedParity()
		if err != nil {
			return nil, nil, err
		}
		stopBits, err := c.options.ParsedStopBits()
		if err != nil {
			return nil, nil, err
		}
		p, ok := rtuParity[parity]
		if !ok {
			return nil, nil, errors.Errorf("parity %s not supported by rtu master", parity)
		}
		sb, ok := rtuStopBits[stopBits]
		if !ok {
			return nil, nil, errors.Errorf("stop bits %s not supported by rtu master", stopBits)
		}
		h := mb.NewRTUClientHandler(c.options.SerialPort)
		h.BaudRate = c.options.BaudRate
		h.DataBits = c.options.DataBits
		h.StopBits = sb
		h.Parity = p
		h.Timeout = c.options.Timeout
		h.Logger = logger
		return h, func(slave byte) { h.SlaveId = slave }, nil
	default:
		return nil, nil, errors.Wrapf(constant.ErrProtocolType, "%s is not a modbus master", c.protocolType)
	}
}

func (c *Client) Start(ctx context.Context) error {
	return c.StartWith(ctx, func(ctx context.Context) error {
		h, setSlave, err := c.newHandler()
		if err != nil {
			return err
		}
		if err = h.Connect(); err != nil {
			klog.V(2).InfoS("Failed to connect modbus slave", "handler", c.Name, "error", err)
			return errors.Wrapf(constant.ErrConnection, "connect: %v", err)
		}
		c.handler = h
		c.setSlave = setSlave
		c.client = mb.NewClient(h)
		c.connected.Store(true)
		klog.V(1).InfoS("Modbus master connected", "handler", c.Name, "type", c.protocolType)
		return nil
	})
}

func (c *Client) Stop(ctx context.Context) error {
	return c.StopWith(ctx, func(ctx context.Context) error {
		c.connected.Store(false)
		if c.handler == nil {
			return nil
		}
		err := c.handler.Close()
		c.handler = nil
		c.client = nil
		return err
	})
}

// do runs one exchange with the slave of p. Requests are serialized because the
// slave id lives on the shared goburrow handler.
func (c *Client) do(p point.Point, fn func(client mb.Client) error) error {
	return c.Guard(true, func() error {
		c.ioMux.Lock()
		defer c.ioMux.Unlock()
		c.setSlave(byte(p.Slave()))
		if err := fn(c.client); err != nil {
			if errors.Is(err, constant.ErrProtocolViolation) {
				return err
			}
			c.connected.Store(false)
			return errors.Wrapf(constant.ErrConnection, "point %s: %v", p.Code(), err)
		}
		c.connected.Store(true)
		return nil
	})
}

func readRegisters(client mb.Client, table Table, address, quantity int) ([]byte, error) {
	if table == InputRegisters {
		return client.ReadInputRegisters(uint16(address), uint16(quantity))
	}
	return client.ReadHoldingRegisters(uint16(address), uint16(quantity))
}

func registerResponse(results []byte, quantity int) error {
	if len(results) < 2*quantity {
		return errors.Wrapf(constant.ErrProtocolViolation, "short register response % x", results)
	}
	return nil
}

func (c *Client) Read(ctx context.Context, p point.Point) (float64, error) {
	table, err := TableOf(FunctionCodeOf(p))
	if err != nil {
		return 0, err
	}
	address, err := registerAddress(p)
	if err != nil {
		return 0, err
	}
	offset, err := bitOffset(p)
	if err != nil {
		return 0, err
	}
	format := p.Base().Format()

	var v float64
	err = c.do(p, func(client mb.Client) error {
		switch {
		case table.Bits():
			read := client.ReadCoils
			if table == DiscreteInputs {
				read = client.ReadDiscreteInputs
			}
			results, err := read(uint16(address), 1)
			if err != nil {
				return err
			}
			if len(results) < 1 {
				return errors.Wrap(constant.ErrProtocolViolation, "empty bit response")
			}
			v = float64(results[0] & 0x01)
		case bitPoint(p):
			results, err := readRegisters(client, table, address, 1)
			if err != nil {
				return err
			}
			if err = registerResponse(results, 1); err != nil {
				return err
			}
			v = float64((binutil.ParseUint16(results) >> offset) & 1)
		default:
			results, err := readRegisters(client, table, address, format.RegisterCount)
			if err != nil {
				return err
			}
			if err = registerResponse(results, format.RegisterCount); err != nil {
				return err
			}
			decoded, err := codec.DecodeFloat64(format, results[:2*format.RegisterCount])
			if err != nil {
				return errors.Wrap(constant.ErrProtocolViolation, err.Error())
			}
			v = decoded
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (c *Client) Write(ctx context.Context, p point.Point, raw float64) error {
	fc := FunctionCodeOf(p)
	table, err := TableOf(fc)
	if err != nil {
		return err
	}
	if table == DiscreteInputs || table == InputRegisters {
		return errors.Wrapf(constant.ErrNotWritable, "point %s lives in %s", p.Code(), table)
	}
	address, err := registerAddress(p)
	if err != nil {
		return err
	}
	offset, err := bitOffset(p)
	if err != nil {
		return err
	}
	var regs []uint16
	if !table.Bits() && !bitPoint(p) {
		if regs, err = codec.EncodeRegisters(p.Base().Format(), raw); err != nil {
			return err
		}
	}

	err = c.do(p, func(client mb.Client) error {
		switch {
		case table.Bits():
			value := uint16(0x0000)
			if raw != 0 {
				value = 0xFF00
			}
			_, err := client.WriteSingleCoil(uint16(address), value)
			return err
		case bitPoint(p):
			results, err := client.ReadHoldingRegisters(uint16(address), 1)
			if err != nil {
				return err
			}
			if err = registerResponse(results, 1); err != nil {
				return err
			}
			_, err = client.WriteSingleRegister(uint16(address), setBit(binutil.ParseUint16(results), offset, raw != 0))
			return err
		case len(regs) == 1 && fc == 6:
			_, err := client.WriteSingleRegister(uint16(address), regs[0])
			return err
		default:
			_, err := client.WriteMultipleRegisters(uint16(address), uint16(len(regs)), codec.RegistersToBytes(regs))
			return err
		}
	})
	if err != nil {
		return err
	}
	p.Base().SetRawValue(raw)
	return nil
}

func (c *Client) AddPoints(ps []point.Point) error {
	return nil
}

func (c *Client) RemovePoints(ps []point.Point) error {
	return nil
}
