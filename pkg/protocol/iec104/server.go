package iec104

import (
	"context"
	"net"
	"sync"
	"time"

	genericruntime "emssimulate/pkg/generic/runtime"
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

var _ protocol.Handler = (*Server)(nil)
var _ cs104.ServerHandlerInterface = (*serverHandler)(nil)

// 单个 ASDU 携带的信息体数
const infosPerASDU = 20

// Server IEC 60870-5-104 controlled station. Monitoring points are answered on
// interrogation and reported spontaneously, commands update the table.
type Server struct {
	*protocol.Base
	options *Options
	table   *Table

	server *cs104.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
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

// RebuildOnMutation the station topology is fixed once masters are connected.
func (s *Server) RebuildOnMutation() bool {
	return true
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
		table := NewTable()
		for _, p := range s.Points.All() {
			if err = table.Add(p); err != nil {
				return err
			}
		}
		s.options = o
		s.table = table
		return nil
	})
}

func (s *Server) Start(ctx context.Context) error {
	return s.StartWith(ctx, func(ctx context.Context) error {
		addr := s.options.Address()
		// go-iecp5 只记录监听失败, 先行探测端口
		probe, err := net.Listen("tcp", addr)
		if err != nil {
			return errors.Wrapf(constant.ErrConnection, "listen %s: %v", addr, err)
		}
		_ = probe.Close()

		srv := cs104.NewServer(&serverHandler{s: s})
		srv.SetParams(asdu.ParamsWide)
		srv.SetLogProvider(newLogTap(s.Name, s.Capture))
		srv.LogMode(true)
		go srv.ListenAndServer(addr)

		if err = waitListening(addr, s.options.Timeout); err != nil {
			closeServer(srv)
			return errors.Wrapf(constant.ErrConnection, "listen %s: %v", addr, err)
		}
		s.server = srv

		runCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		if s.options.ReportInterval > 0 {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				wait.Until(func() {
					if err := s.sendMonitoring(srv, asdu.Spontaneous); err != nil {
						klog.V(4).InfoS("Failed to report monitoring points", "handler", s.Name, "error", err)
					}
				}, s.options.ReportInterval, runCtx.Done())
			}()
		}
		klog.V(1).InfoS("IEC104 server started", "handler", s.Name, "address", addr, "commonAddress", s.options.CommonAddress, "points", s.table.Len())
		return nil
	})
}

func waitListening(addr string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	target := net.JoinHostPort(host, port)
	return wait.PollImmediate(20*time.Millisecond, timeout, func() (bool, error) {
		conn, err := net.DialTimeout("tcp", target, 100*time.Millisecond)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	})
}

func closeServer(srv *cs104.Server) {
	done := make(chan struct{})
	go func() {
		_ = srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		klog.V(2).InfoS("IEC104 server close timed out")
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.StopWith(ctx, func(ctx context.Context) error {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		if s.server != nil {
			closeServer(s.server)
			s.server = nil
		}
		klog.V(1).InfoS("IEC104 server stopped", "handler", s.Name)
		return nil
	})
}

func (s *Server) commonAddr() asdu.CommonAddr {
	return asdu.CommonAddr(s.options.CommonAddress)
}

// sendMonitoring sends every status and measurement point with cause.
func (s *Server) sendMonitoring(c asdu.Connect, cause asdu.Cause) error {
	coa := asdu.CauseOfTransmission{Cause: cause}
	if err := sendStatuses(c, coa, s.commonAddr(), s.table.Entries(constant.Status)); err != nil {
		return err
	}
	return sendMeasurements(c, coa, s.commonAddr(), s.table.Entries(constant.Measurement))
}

func sendStatuses(c asdu.Connect, coa asdu.CauseOfTransmission, ca asdu.CommonAddr, entries []Entry) error {
	for _, group := range genericruntime.InGroupOf(entries, infosPerASDU) {
		infos := make([]asdu.SinglePointInfo, 0, len(group))
		for _, e := range group {
			infos = append(infos, asdu.SinglePointInfo{Ioa: asdu.InfoObjAddr(e.IOA), Value: e.Raw != 0, Qds: asdu.QDSGood})
		}
		if err := asdu.Single(c, false, coa, ca, infos...); err != nil {
			return err
		}
	}
	return nil
}

func sendMeasurements(c asdu.Connect, coa asdu.CauseOfTransmission, ca asdu.CommonAddr, entries []Entry) error {
	for _, group := range genericruntime.InGroupOf(entries, infosPerASDU) {
		infos := make([]asdu.MeasuredValueFloatInfo, 0, len(group))
		for _, e := range group {
			infos = append(infos, asdu.MeasuredValueFloatInfo{
				Ioa:   asdu.InfoObjAddr(e.IOA),
				Value: float32(point.ToEngineering(e.Point, e.Raw)),
				Qds:   asdu.QDSGood,
			})
		}
		if err := asdu.MeasuredValueFloat(c, false, coa, ca, infos...); err != nil {
			return err
		}
	}
	return nil
}

// report pushes a single monitoring point change to every connected master.
func (s *Server) report(p point.Point, raw float64) {
	srv := s.server
	if srv == nil || s.State() != protocol.Running {
		return
	}
	ioa, err := IOA(p)
	if err != nil {
		return
	}
	entries := []Entry{{Point: p, IOA: ioa, Raw: raw}}
	coa := asdu.CauseOfTransmission{Cause: asdu.Spontaneous}
	switch p.Kind() {
	case constant.Status:
		err = sendStatuses(srv, coa, s.commonAddr(), entries)
	case constant.Measurement:
		err = sendMeasurements(srv, coa, s.commonAddr(), entries)
	}
	if err != nil {
		klog.V(4).InfoS("Failed to report point", "handler", s.Name, "point", p.Code(), "error", err)
	}
}

func (s *Server) Read(ctx context.Context, p point.Point) (float64, error) {
	var v float64
	err := s.Guard(false, func() error {
		raw, ok, err := s.table.Value(p)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(constant.ErrPointNotFound, "point %s not served", p.Code())
		}
		v = raw
		return nil
	})
	return v, err
}

func (s *Server) Write(ctx context.Context, p point.Point, raw float64) error {
	return s.Guard(false, func() error {
		ioa, err := IOA(p)
		if err != nil {
			return err
		}
		if _, ok := s.table.Set(p.Kind(), ioa, raw); !ok {
			return errors.Wrapf(constant.ErrPointNotFound, "point %s not served", p.Code())
		}
		if p.Kind() == constant.Status || p.Kind() == constant.Measurement {
			s.report(p, raw)
		}
		return nil
	})
}

func (s *Server) AddPoints(ps []point.Point) error {
	return s.Guard(false, func() error {
		if s.State() == protocol.Running {
			return constant.ErrTopologyFrozen
		}
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
		if s.State() == protocol.Running {
			return constant.ErrTopologyFrozen
		}
		for _, p := range ps {
			s.table.Remove(p)
		}
		return nil
	})
}

// applyControl executes a command on the control point at ioa and drives its related
// status point.
func (s *Server) applyControl(ioa uint32, raw float64) bool {
	p, ok := s.table.Set(constant.Control, ioa, raw)
	if !ok {
		return false
	}
	klog.V(3).InfoS("Control command executed", "handler", s.Name, "point", p.Code(), "value", raw)
	ctl, ok := p.(*point.Control)
	if !ok || ctl.RelatedStatus() == "" {
		return true
	}
	st, ok := s.Points.GetByCode(ctl.RelatedStatus())
	if !ok || st.Kind() != constant.Status {
		return true
	}
	if stIoa, err := IOA(st); err == nil {
		if _, ok := s.table.Set(constant.Status, stIoa, raw); ok {
			s.report(st, raw)
		}
	}
	return true
}

type serverHandler struct {
	s *Server
}

func negative(c asdu.Connect, a *asdu.ASDU, cause asdu.Cause) error {
	a.Coa.IsNegative = true
	return a.SendReplyMirror(c, cause)
}

func (h *serverHandler) InterrogationHandler(c asdu.Connect, a *asdu.ASDU, qoi asdu.QualifierOfInterrogation) error {
	if a.CommonAddr != h.s.commonAddr() {
		return negative(c, a, asdu.UnknownCA)
	}
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	if err := h.s.sendMonitoring(c, asdu.InterrogatedByStation); err != nil {
		klog.V(2).InfoS("Failed to answer interrogation", "handler", h.s.Name, "error", err)
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func (h *serverHandler) CounterInterrogationHandler(c asdu.Connect, a *asdu.ASDU, qcc asdu.QualifierCountCall) error {
	// 无累计量
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func (h *serverHandler) ReadHandler(c asdu.Connect, a *asdu.ASDU, ioa asdu.InfoObjAddr) error {
	coa := asdu.CauseOfTransmission{Cause: asdu.Request}
	if p, ok := h.s.table.Lookup(constant.Measurement, uint32(ioa)); ok {
		raw, _, _ := h.s.table.Value(p)
		return sendMeasurements(c, coa, h.s.commonAddr(), []Entry{{Point: p, IOA: uint32(ioa), Raw: raw}})
	}
	if p, ok := h.s.table.Lookup(constant.Status, uint32(ioa)); ok {
		raw, _, _ := h.s.table.Value(p)
		return sendStatuses(c, coa, h.s.commonAddr(), []Entry{{Point: p, IOA: uint32(ioa), Raw: raw}})
	}
	return negative(c, a, asdu.UnknownIOA)
}

func (h *serverHandler) ClockSyncHandler(c asdu.Connect, a *asdu.ASDU, t time.Time) error {
	klog.V(4).InfoS("Clock synchronization received", "handler", h.s.Name, "time", t)
	return a.SendReplyMirror(c, asdu.ActivationCon)
}

func (h *serverHandler) ResetProcessHandler(c asdu.Connect, a *asdu.ASDU, qrp asdu.QualifierOfResetProcessCmd) error {
	return a.SendReplyMirror(c, asdu.ActivationCon)
}

func (h *serverHandler) DelayAcquisitionHandler(c asdu.Connect, a *asdu.ASDU, msec uint16) error {
	return a.SendReplyMirror(c, asdu.ActivationCon)
}

func (h *serverHandler) ASDUHandler(c asdu.Connect, a *asdu.ASDU) error {
	if a.CommonAddr != h.s.commonAddr() {
		return negative(c, a, asdu.UnknownCA)
	}
	switch a.Identifier.Type {
	case asdu.C_SC_NA_1:
		cmd := a.GetSingleCmd()
		return h.command(c, a, uint32(cmd.Ioa), cmd.Qoc.InSelect, func(ioa uint32) bool {
			return h.s.applyControl(ioa, boolToFloat(cmd.Value))
		})
	case asdu.C_DC_NA_1:
		cmd := a.GetDoubleCmd()
		var raw float64
		switch cmd.Value {
		case asdu.DCOOn:
			raw = 1
		case asdu.DCOOff:
			raw = 0
		default:
			return negative(c, a, asdu.ActivationCon)
		}
		return h.command(c, a, uint32(cmd.Ioa), cmd.Qoc.InSelect, func(ioa uint32) bool {
			return h.s.applyControl(ioa, raw)
		})
	case asdu.C_SE_NC_1:
		cmd := a.GetSetpointFloatCmd()
		return h.command(c, a, uint32(cmd.Ioa), cmd.Qos.InSelect, func(ioa uint32) bool {
			p, ok := h.s.table.Lookup(constant.Setpoint, ioa)
			if !ok {
				return false
			}
			raw, err := point.ToRaw(p, float64(cmd.Value))
			if err != nil {
				klog.V(3).InfoS("Setpoint command rejected", "handler", h.s.Name, "point", p.Code(), "value", cmd.Value, "error", err)
				return false
			}
			h.s.table.Set(constant.Setpoint, ioa, raw)
			klog.V(3).InfoS("Setpoint command executed", "handler", h.s.Name, "point", p.Code(), "value", cmd.Value)
			return true
		})
	default:
		return negative(c, a, asdu.UnknownTypeID)
	}
}

// command answers select with a confirmation only, execute runs apply first.
func (h *serverHandler) command(c asdu.Connect, a *asdu.ASDU, ioa uint32, selectOnly bool, apply func(ioa uint32) bool) error {
	kind := constant.Control
	if a.Identifier.Type == asdu.C_SE_NC_1 {
		kind = constant.Setpoint
	}
	if _, ok := h.s.table.Lookup(kind, ioa); !ok {
		return negative(c, a, asdu.UnknownIOA)
	}
	if a.Coa.Cause != asdu.Activation {
		return negative(c, a, asdu.UnknownCOT)
	}
	if selectOnly {
		return a.SendReplyMirror(c, asdu.ActivationCon)
	}
	if !apply(ioa) {
		return negative(c, a, asdu.ActivationCon)
	}
	if err := a.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}
	return a.SendReplyMirror(c, asdu.ActivationTerm)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
