package dlt645

import (
	"context"
	"net"

	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/protocol/transport"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

var _ protocol.Handler = (*Client)(nil)
var _ protocol.Connector = (*Client)(nil)

// Client master polling one meter. Requests block on the line, the device schedules
// them through a bridge.
type Client struct {
	*protocol.Base
	options   *Options
	address   Address
	clients   *transport.Clients
	connected atomic.Bool
}

func NewClient(name string, points *pointmanager.PointManager, captureCapacity int) *Client {
	return &Client{
		Base:    protocol.NewBase(name, points, captureCapacity),
		options: DefaultClientOptions(),
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

func (c *Client) Options() *Options {
	return c.options
}

func (c *Client) Initialize(options map[string]interface{}) error {
	return c.InitializeWith(func() error {
		o, err := decodeOptions(options, DefaultClientOptions())
		if err != nil {
			return err
		}
		address, _ := ParseAddress(o.MeterAddress)
		c.options = o
		c.address = address
		return nil
	})
}

func (c *Client) newMessenger() (transport.Messenger, error) {
	if c.options.Serial() {
		port, err := transport.OpenSerial(&c.options.SerialOptions)
		if err != nil {
			return nil, err
		}
		return &transport.SerialClient{Timeout: c.options.Timeout, Port: port}, nil
	}
	conn, err := net.DialTimeout("tcp", c.options.Address(), c.options.Timeout)
	if err != nil {
		return nil, errors.Wrapf(constant.ErrConnection, "dial %s: %v", c.options.Address(), err)
	}
	return &transport.TcpClient{Timeout: c.options.Timeout, Tunnel: conn}, nil
}

func (c *Client) Start(ctx context.Context) error {
	return c.StartWith(ctx, func(ctx context.Context) error {
		clients, err := transport.NewClients(1, c.newMessenger)
		if err != nil {
			return err
		}
		c.clients = clients
		c.connected.Store(true)
		klog.V(1).InfoS("DL/T645 master started", "handler", c.Name, "meter", c.address, "transport", c.options.Transport)
		return nil
	})
}

func (c *Client) Stop(ctx context.Context) error {
	return c.StopWith(ctx, func(ctx context.Context) error {
		if c.clients != nil {
			c.clients.Destroy(ctx)
			c.clients = nil
		}
		c.connected.Store(false)
		klog.V(1).InfoS("DL/T645 master stopped", "handler", c.Name)
		return nil
	})
}

// ask sends request and returns the decoded answer of the addressed meter.
func (c *Client) ask(ctx context.Context, request *Frame) (*Frame, error) {
	m, err := c.clients.GetMessenger(ctx)
	if err != nil {
		return nil, err
	}
	out := append(append([]byte{}, Preamble...), Encode(request)...)
	c.Capture.RecordTx(out, "request")
	raw, err := m.Ask(out, FrameLength)
	if err != nil {
		if errors.Is(err, constant.ErrConnection) {
			c.connected.Store(false)
			// 重新建链, 失败时放回旧连接, 下次请求再试
			if renewed, rerr := c.clients.Renew(m); rerr == nil {
				m = renewed
			}
		}
		c.clients.ReleaseMessenger(m)
		return nil, err
	}
	c.clients.ReleaseMessenger(m)
	c.connected.Store(true)
	c.Capture.RecordRx(raw, "response")

	response, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if !matches(request.Address, response.Address) {
		return nil, errors.Wrapf(constant.ErrProtocolViolation, "answer from meter %s, want %s", response.Address, request.Address)
	}
	return response, nil
}

func (c *Client) Read(ctx context.Context, p point.Point) (float64, error) {
	di, err := Identifier(p)
	if err != nil {
		return 0, err
	}
	var v float64
	err = c.Guard(true, func() error {
		response, err := c.ask(ctx, &Frame{Address: c.address, Control: ControlRead, Data: di})
		if err != nil {
			return err
		}
		switch response.Control {
		case ControlReadAck:
		case ControlReadError:
			return meterError(response)
		default:
			return errors.Wrapf(constant.ErrProtocolViolation, "unexpected control code %#02x", response.Control)
		}
		data := response.Data
		if len(data) < identifierLength+c.options.DataLength || identifierKey(data[:identifierLength]) != identifierKey(di) {
			return errors.Wrapf(constant.ErrProtocolViolation, "malformed read answer % X", data)
		}
		raw, err := DecodeBCD(data[identifierLength : identifierLength+c.options.DataLength])
		if err != nil {
			return err
		}
		v = float64(raw)
		return nil
	})
	return v, err
}

func (c *Client) Write(ctx context.Context, p point.Point, raw float64) error {
	if !writable(p) {
		return errors.Wrapf(constant.ErrNotWritable, "point %s is a %s point", p.Code(), p.Kind())
	}
	di, err := Identifier(p)
	if err != nil {
		return err
	}
	value, err := encodeValue(raw, c.options.DataLength)
	if err != nil {
		return err
	}
	data := make([]byte, 0, identifierLength+passwordLength+operatorLength+len(value))
	data = append(data, di...)
	data = append(data, make([]byte, passwordLength+operatorLength)...)
	data = append(data, value...)
	return c.Guard(true, func() error {
		response, err := c.ask(ctx, &Frame{Address: c.address, Control: ControlWrite, Data: data})
		if err != nil {
			return err
		}
		switch response.Control {
		case ControlWriteAck:
			p.Base().SetRawValue(raw)
			return nil
		case ControlWriteError:
			return meterError(response)
		default:
			return errors.Wrapf(constant.ErrProtocolViolation, "unexpected control code %#02x", response.Control)
		}
	})
}

// AddPoints only validates the data identifiers, the meter is polled per point.
func (c *Client) AddPoints(ps []point.Point) error {
	for _, p := range ps {
		if _, err := Identifier(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) RemovePoints(ps []point.Point) error {
	return nil
}

func meterError(response *Frame) error {
	var code byte
	if len(response.Data) > 0 {
		code = response.Data[0]
	}
	if code&ErrorNoData != 0 {
		return errors.Wrapf(constant.ErrPointNotFound, "meter has no data, error %#02x", code)
	}
	return errors.Wrapf(constant.ErrProtocolViolation, "meter error %#02x", code)
}
