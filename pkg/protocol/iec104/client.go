package iec104

import (
	"context"
	"time"

	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"github.com/thinkgos/go-iecp5/asdu"
	"github.com/thinkgos/go-iecp5/cs104"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

var _ protocol.Handler = (*Client)(nil)
var _ protocol.Connector = (*Client)(nil)
var _ cs104.ClientHandlerInterface = (*clientHandler)(nil)

// Client IEC 60870-5-104 controlling station. Monitoring values arrive through
// interrogation and spontaneous reports and are cached in the table, commands are
// sent for control and setpoint writes.
type Client struct {
	*protocol.Base
	options *Options
	table   *Table

	client *cs104.Client
	cancel context.CancelFunc
}

func NewClient(name string, points *pointmanager.PointManager, captureCapacity int) *Client {
	return &Client{
		Base:    protocol.NewBase(name, points, captureCapacity),
		options: DefaultClientOptions(),
		table:   NewTable(),
	}
}

func (c *Client) Capability() protocol.Capability {
	return protocol.NativeAsync
}

func (c *Client) RebuildOnMutation() bool {
	return true
}

func (c *Client) Options() *Options {
	return c.options
}

func (c *Client) Connected() bool {
	cli := c.client
	return cli != nil && cli.IsConnected()
}

func (c *Client) Initialize(options map[string]interface{}) error {
	return c.InitializeWith(func() error {
		o, err := decodeOptions(options, DefaultClientOptions())
		if err != nil {
			return err
		}
		table := NewTable()
		for _, p := range c.Points.All() {
			if err = table.Add(p); err != nil {
				return err
			}
		}
		c.options = o
		c.table = table
		return nil
	})
}

func (c *Client) Start(ctx context.Context) error {
	return c.StartWith(ctx, func(ctx context.Context) error {
		opt := cs104.NewOption()
		if err := opt.AddRemoteServer(c.options.Address()); err != nil {
			return errors.Wrapf(constant.ErrConnection, "remote %s: %v", c.options.Address(), err)
		}
		opt.SetParams(asdu.ParamsWide)
		opt.SetAutoReconnect(true)
		opt.SetReconnectInterval(c.options.ReconnectInterval)

		runCtx, cancel := context.WithCancel(context.Background())
		cli := cs104.NewClient(&clientHandler{c: c}, opt)
		cli.SetLogProvider(newLogTap(c.Name, c.Capture))
		cli.LogMode(true)
		cli.SetOnConnectHandler(func(cli *cs104.Client) {
			cli.SendStartDt()
			go c.interrogate(runCtx, cli)
		})
		if err := cli.Start(); err != nil {
			cancel()
			return errors.Wrapf(constant.ErrConnection, "start: %v", err)
		}
		err := wait.PollImmediate(50*time.Millisecond, c.options.Timeout, func() (bool, error) {
			return cli.IsConnected(), nil
		})
		if err != nil {
			cancel()
			_ = cli.Close()
			return errors.Wrapf(constant.ErrConnection, "connect %s: %v", c.options.Address(), err)
		}
		c.client = cli
		c.cancel = cancel
		klog.V(1).InfoS("IEC104 client connected", "handler", c.Name, "address", c.options.Address())
		return nil
	})
}

// interrogate sends a general interrogation once the link is active.
func (c *Client) interrogate(ctx context.Context, cli *cs104.Client) {
	ca := asdu.CommonAddr(c.options.CommonAddress)
	err := wait.PollImmediateUntil(100*time.Millisecond, func() (bool, error) {
		if err := cli.InterrogationCmd(asdu.CauseOfTransmission{Cause: asdu.Activation}, ca, asdu.QOIStation); err != nil {
			klog.V(4).InfoS("Interrogation not sent yet", "handler", c.Name, "error", err)
			return false, nil
		}
		return true, nil
	}, ctx.Done())
	if err != nil {
		klog.V(4).InfoS("Interrogation abandoned", "handler", c.Name, "error", err)
	}
}

func (c *Client) Stop(ctx context.Context) error {
	return c.StopWith(ctx, func(ctx context.Context) error {
		if c.cancel != nil {
			c.cancel()
		}
		var err error
		if c.client != nil {
			err = c.client.Close()
			c.client = nil
		}
		klog.V(1).InfoS("IEC104 client stopped", "handler", c.Name)
		return err
	})
}

// Read returns the last value received for p.
func (c *Client) Read(ctx context.Context, p point.Point) (float64, error) {
	var v float64
	err := c.Guard(true, func() error {
		raw, ok, err := c.table.Value(p)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(constant.ErrPointNotFound, "point %s not mirrored", p.Code())
		}
		v = raw
		return nil
	})
	return v, err
}

// Write sends a command. Monitoring points cannot be written from the controlling
// station.
func (c *Client) Write(ctx context.Context, p point.Point, raw float64) error {
	if p.Kind() == constant.Measurement || p.Kind() == constant.Status {
		return errors.Wrapf(constant.ErrNotWritable, "point %s is %s", p.Code(), p.Kind())
	}
	ioa, err := IOA(p)
	if err != nil {
		return err
	}
	return c.Guard(true, func() error {
		coa := asdu.CauseOfTransmission{Cause: asdu.Activation}
		ca := asdu.CommonAddr(c.options.CommonAddress)
		var err error
		switch p.Kind() {
		case constant.Control:
			ctl, _ := p.(*point.Control)
			if ctl != nil && ctl.CommandType == constant.DoubleCommand {
				value := asdu.DCOOff
				if raw != 0 {
					value = asdu.DCOOn
				}
				err = asdu.DoubleCmd(c.client, asdu.C_DC_NA_1, coa, ca, asdu.DoubleCommandInfo{Ioa: asdu.InfoObjAddr(ioa), Value: value})
			} else {
				err = asdu.SingleCmd(c.client, asdu.C_SC_NA_1, coa, ca, asdu.SingleCommandInfo{Ioa: asdu.InfoObjAddr(ioa), Value: raw != 0})
			}
		case constant.Setpoint:
			err = asdu.SetpointCmdFloat(c.client, asdu.C_SE_NC_1, coa, ca, asdu.SetpointCommandFloatInfo{
				Ioa:   asdu.InfoObjAddr(ioa),
				Value: float32(point.ToEngineering(p, raw)),
			})
		}
		if err != nil {
			return errors.Wrapf(constant.ErrConnection, "point %s: %v", p.Code(), err)
		}
		if _, ok := c.table.Set(p.Kind(), ioa, raw); !ok {
			p.Base().SetRawValue(raw)
		}
		return nil
	})
}

func (c *Client) AddPoints(ps []point.Point) error {
	return c.Guard(false, func() error {
		if c.State() == protocol.Running {
			return constant.ErrTopologyFrozen
		}
		for _, p := range ps {
			if err := c.table.Add(p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) RemovePoints(ps []point.Point) error {
	return c.Guard(false, func() error {
		if c.State() == protocol.Running {
			return constant.ErrTopologyFrozen
		}
		for _, p := range ps {
			c.table.Remove(p)
		}
		return nil
	})
}

// receive stores a monitoring value sent in engineering units.
func (c *Client) receive(kind constant.PointKind, ioa asdu.InfoObjAddr, engineering float64) {
	p, ok := c.table.Lookup(kind, uint32(ioa))
	if !ok {
		klog.V(5).InfoS("Value for unknown address ignored", "handler", c.Name, "kind", kind, "ioa", ioa)
		return
	}
	raw := engineering
	if t, ok := point.TransformOf(p); ok {
		v, err := t.Raw(engineering)
		if err != nil {
			klog.V(2).InfoS("Failed to convert received value", "handler", c.Name, "point", p.Code(), "error", err)
			return
		}
		raw = v
	}
	c.table.Set(kind, uint32(ioa), raw)
}

type clientHandler struct {
	c *Client
}

func (h *clientHandler) InterrogationHandler(conn asdu.Connect, a *asdu.ASDU) error {
	klog.V(4).InfoS("Interrogation answered", "handler", h.c.Name, "cause", a.Coa.Cause)
	return nil
}

func (h *clientHandler) CounterInterrogationHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) ReadHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) TestCommandHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) ClockSyncHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) ResetProcessHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) DelayAcquisitionHandler(asdu.Connect, *asdu.ASDU) error {
	return nil
}

func (h *clientHandler) ASDUHandler(conn asdu.Connect, a *asdu.ASDU) error {
	switch a.Identifier.Type {
	case asdu.M_SP_NA_1, asdu.M_SP_TA_1, asdu.M_SP_TB_1:
		for _, info := range a.GetSinglePoint() {
			h.c.receive(constant.Status, info.Ioa, boolToFloat(info.Value))
		}
	case asdu.M_DP_NA_1, asdu.M_DP_TA_1, asdu.M_DP_TB_1:
		for _, info := range a.GetDoublePoint() {
			h.c.receive(constant.Status, info.Ioa, boolToFloat(info.Value == asdu.DPIDeterminedOn))
		}
	case asdu.M_ME_NC_1, asdu.M_ME_TC_1, asdu.M_ME_TF_1:
		for _, info := range a.GetMeasuredValueFloat() {
			h.c.receive(constant.Measurement, info.Ioa, float64(info.Value))
		}
	case asdu.M_ME_NB_1, asdu.M_ME_TB_1, asdu.M_ME_TE_1:
		for _, info := range a.GetMeasuredValueScaled() {
			h.c.receive(constant.Measurement, info.Ioa, float64(info.Value))
		}
	case asdu.M_ME_NA_1, asdu.M_ME_TA_1, asdu.M_ME_TD_1, asdu.M_ME_ND_1:
		for _, info := range a.GetMeasuredValueNormal() {
			h.c.receive(constant.Measurement, info.Ioa, info.Value.Float64())
		}
	case asdu.C_SC_NA_1, asdu.C_DC_NA_1, asdu.C_SE_NC_1:
		if a.Coa.IsNegative {
			klog.V(2).InfoS("Command rejected by station", "handler", h.c.Name, "type", a.Identifier.Type, "cause", a.Coa.Cause)
		}
	default:
		klog.V(5).InfoS("ASDU ignored", "handler", h.c.Name, "type", a.Identifier.Type)
	}
	return nil
}
