package channel

import (
	"context"
	"sync"
	"time"

	"emssimulate/pkg/capture"
	"emssimulate/pkg/codec"
	"emssimulate/pkg/generic"
	"emssimulate/pkg/metrics"
	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/resolver"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/storage"
	"emssimulate/pkg/utils/differenceutil"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

type HandlerFactory func(pt constant.ProtocolType, name string, points *pointmanager.PointManager, captureCapacity int) (protocol.Handler, error)

type DeviceOptions struct {
	PollInterval    time.Duration
	BridgeWorkers   int
	HandoffTimeout  time.Duration
	CaptureCapacity int
	NewHandler      HandlerFactory
}

func (o *DeviceOptions) complete() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BridgeWorkers <= 0 {
		o.BridgeWorkers = protocol.DefaultBridgeWorkers
	}
	if o.HandoffTimeout <= 0 {
		o.HandoffTimeout = protocol.DefaultHandoffTimeout
	}
	if o.CaptureCapacity <= 0 {
		o.CaptureCapacity = capture.DefaultCapacity
	}
	if o.NewHandler == nil {
		o.NewHandler = generic.CreateHandler
	}
}

// PublishFunc receives the values of every poll pass.
type PublishFunc func(ch *runtime.Channel, values []runtime.PointData)

// Device binds one channel to its points, its protocol handler and its poller.
type Device struct {
	// mu guards channel, handler and status. Handler I/O runs on a snapshot so a
	// rebuild never waits for the network, the old handler drains on Stop.
	mu      sync.RWMutex
	channel *runtime.Channel
	handler protocol.Handler
	status  runtime.ChannelStatus
	lastErr error

	points  *pointmanager.PointManager
	store   storage.PointStore
	bridge  *protocol.Bridge
	options DeviceOptions
	publish PublishFunc

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func defaultSlaves(family constant.ProtocolFamily) []int {
	if family == constant.FamilyRegister {
		return []int{0, 1}
	}
	return nil
}

// NewDevice loads the points of ch from store and initializes its handler. Invalid
// stored points are skipped, an initialization failure is kept and reported by Start.
func NewDevice(ch *runtime.Channel, store storage.PointStore, options DeviceOptions, publish PublishFunc) (*Device, error) {
	options.complete()
	d := &Device{
		channel: ch,
		points:  pointmanager.New(defaultSlaves(ch.ProtocolType.Family())...),
		store:   store,
		options: options,
		publish: publish,
	}

	records, err := store.LoadPoints(ch.GetID())
	if err != nil {
		return nil, errors.Wrapf(err, "load points of channel %s", ch.GetID())
	}
	for _, r := range records {
		p, err := point.New(r, d.family())
		if err == nil {
			err = d.points.AddPoint(p)
		}
		if err != nil {
			klog.V(2).InfoS("Failed to load point", "channel", ch.GetID(), "code", r.Code, "err", err)
		}
	}

	h, err := options.NewHandler(ch.ProtocolType, ch.GetName(), d.points, options.CaptureCapacity)
	if err != nil {
		return nil, err
	}
	d.handler = h
	if h.Capability() == protocol.BlockingWrapped {
		d.bridge = protocol.NewBridge(options.BridgeWorkers, options.HandoffTimeout)
	}
	if err = d.initialize(h); err != nil {
		klog.V(2).InfoS("Failed to initialize protocol handler", "channel", ch.GetID(), "err", err)
		d.status, d.lastErr = runtime.Error, err
	}
	return d, nil
}

func (d *Device) family() constant.ProtocolFamily {
	return d.channel.ProtocolType.Family()
}

func (d *Device) role() constant.Role {
	return d.channel.ProtocolType.Role()
}

// initialize configures h and registers every point with it.
func (d *Device) initialize(h protocol.Handler) error {
	if err := h.Initialize(d.channel.Options); err != nil {
		return err
	}
	if reg, ok := h.(protocol.SlaveRegistrar); ok {
		for _, s := range reg.Slaves() {
			if s > 0 && !d.points.HasSlave(s) {
				_ = d.points.AddSlave(s)
			}
		}
	}
	return h.AddPoints(d.points.All())
}

func (d *Device) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channel.GetID()
}

// Channel returns a copy of the channel descriptor.
func (d *Device) Channel() *runtime.Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch := *d.channel
	return &ch
}

func (d *Device) Points() *pointmanager.PointManager {
	return d.points
}

func (d *Device) Handler() protocol.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handler
}

func (d *Device) Status() runtime.ChannelStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Device) Info() *runtime.ChannelInfo {
	d.mu.RLock()
	ch := *d.channel
	status, lastErr := d.status, d.lastErr
	d.mu.RUnlock()
	info := &runtime.ChannelInfo{
		Channel:    &ch,
		Status:     runtime.ChannelStatusToString[status],
		AutoRead:   d.AutoReadRunning(),
		PointCount: d.points.Count(),
		Slaves:     d.points.Slaves(),
	}
	if status == runtime.Error && lastErr != nil {
		info.Error = lastErr.Error()
	}
	return info
}

// call runs fn directly or through the bridge for blocking handlers.
func (d *Device) call(ctx context.Context, fn func(ctx context.Context) (float64, error)) (float64, error) {
	if d.bridge != nil {
		return protocol.Invoke(ctx, d.bridge, fn)
	}
	return fn(ctx)
}

func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	err := d.startLocked(ctx)
	autoRead := d.channel.AutoRead
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if autoRead {
		d.StartAutoRead()
	}
	return nil
}

func (d *Device) startLocked(ctx context.Context) error {
	if d.handler.State() == protocol.Uninitialized {
		if err := d.initialize(d.handler); err != nil {
			d.status, d.lastErr = runtime.Error, err
			return err
		}
	}
	if err := d.handler.Start(ctx); err != nil {
		klog.V(2).InfoS("Failed to start channel", "channel", d.channel.GetID(), "err", err)
		d.status, d.lastErr = runtime.Error, err
		metrics.SetRunning(d.channel.GetID(), d.channel.ProtocolType.String(), false)
		return err
	}
	d.status, d.lastErr = runtime.Running, nil
	metrics.SetRunning(d.channel.GetID(), d.channel.ProtocolType.String(), true)
	klog.V(1).InfoS("Channel started", "channel", d.channel.GetID(), "protocol", d.channel.ProtocolType)
	return nil
}

// Stop cancels the poller before the handler releases its resources.
func (d *Device) Stop(ctx context.Context) error {
	d.StopAutoRead()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked(ctx)
}

func (d *Device) stopLocked(ctx context.Context) error {
	if d.handler.State() == protocol.Uninitialized {
		return nil
	}
	err := d.handler.Stop(ctx)
	d.status = runtime.Stopped
	metrics.SetRunning(d.channel.GetID(), d.channel.ProtocolType.String(), false)
	klog.V(1).InfoS("Channel stopped", "channel", d.channel.GetID())
	return err
}

// Close stops the device and releases its bridge.
func (d *Device) Close(ctx context.Context) error {
	err := d.Stop(ctx)
	if d.bridge != nil {
		d.bridge.Close()
	}
	return err
}

// Reconfigure replaces the channel descriptor and rebuilds the handler with its
// options, the running state is kept.
func (d *Device) Reconfigure(ctx context.Context, ch *runtime.Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channel = ch
	return d.rebuildLocked(ctx)
}

func (d *Device) rebuild(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rebuildLocked(ctx)
}

// rebuildLocked tears the handler down and builds it again over the current points.
func (d *Device) rebuildLocked(ctx context.Context) error {
	wasRunning := d.handler.State() == protocol.Running
	if err := d.stopLocked(ctx); err != nil {
		klog.V(2).InfoS("Failed to stop handler before rebuild", "channel", d.channel.GetID(), "err", err)
	}
	h, err := d.options.NewHandler(d.channel.ProtocolType, d.channel.GetName(), d.points, d.options.CaptureCapacity)
	if err != nil {
		return err
	}
	d.handler = h
	if err = d.initialize(h); err != nil {
		d.status, d.lastErr = runtime.Error, err
		return err
	}
	klog.V(3).InfoS("Rebuilt protocol handler", "channel", d.channel.GetID(), "points", d.points.Count())
	if wasRunning {
		return d.startLocked(ctx)
	}
	return nil
}

func (d *Device) StartAutoRead() {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	if d.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.pollCancel, d.pollDone = cancel, done
	go func() {
		defer close(done)
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			d.PollOnce(ctx)
		}, d.options.PollInterval)
	}()
	klog.V(3).InfoS("Auto read started", "channel", d.ID(), "interval", d.options.PollInterval)
}

// StopAutoRead returns once the running poll pass, if any, has finished.
func (d *Device) StopAutoRead() {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	if d.pollCancel == nil {
		return
	}
	d.pollCancel()
	<-d.pollDone
	d.pollCancel, d.pollDone = nil, nil
	klog.V(3).InfoS("Auto read stopped", "channel", d.ID())
}

// SetChannel replaces the descriptor without touching the handler, used when only
// flags or the version changed.
func (d *Device) SetChannel(ch *runtime.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channel = ch
}

func (d *Device) AutoReadRunning() bool {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	return d.pollCancel != nil
}

// PollOnce reads every enabled measurement and status point once. A failed point is
// logged and skipped, the pass goes on with the rest.
func (d *Device) PollOnce(ctx context.Context) []runtime.PointData {
	ch := d.Channel()
	h := d.Handler()
	defer metrics.ObservePoll(ch.GetID(), time.Now())

	values := make([]runtime.PointData, 0, d.points.Count())
	for _, slave := range d.points.Slaves() {
		sp := d.points.GetBySlave(slave)
		for _, p := range append(sp.Measurements, sp.Statuses...) {
			if ctx.Err() != nil {
				return values
			}
			if !p.Base().Enabled() {
				continue
			}
			raw, err := d.read(ctx, h, p)
			if err != nil {
				klog.V(4).InfoS("Failed to read point", "channel", ch.GetID(), "code", p.Code(), "err", err)
				continue
			}
			values = append(values, runtime.PointData{DataPointId: p.Code(), Value: point.ToEngineering(p, raw)})
		}
	}
	if d.publish != nil && len(values) > 0 {
		d.publish(ch, values)
	}
	return values
}

// read stores the value only while the caller still waits for it, a read that timed
// out leaves the point as it was.
func (d *Device) read(ctx context.Context, h protocol.Handler, p point.Point) (float64, error) {
	info := p.Base()
	raw, err := d.call(ctx, func(ctx context.Context) (float64, error) {
		var v float64
		err := info.Exclusive(func() error {
			raw, err := h.Read(ctx, p)
			if err != nil {
				return err
			}
			if !protocol.Commit(ctx) {
				return errors.Wrapf(constant.ErrHandoffTimeout, "read of %s abandoned", p.Code())
			}
			info.SetRawValue(raw)
			v = raw
			return nil
		})
		return v, err
	})
	metrics.PointIO.WithLabelValues(d.ID(), "read", metrics.Result(err)).Inc()
	return raw, err
}

func (d *Device) write(ctx context.Context, h protocol.Handler, p point.Point, raw float64) error {
	_, err := d.call(ctx, func(ctx context.Context) (float64, error) {
		return raw, p.Base().Exclusive(func() error {
			return h.Write(ctx, p, raw)
		})
	})
	metrics.PointIO.WithLabelValues(d.ID(), "write", metrics.Result(err)).Inc()
	return err
}

func (d *Device) lookup(code string) (point.Point, error) {
	p, ok := d.points.GetByCode(code)
	if !ok {
		return nil, errors.Wrapf(constant.ErrPointNotFound, "code %s", code)
	}
	return p, nil
}

// ReadPoint reads one point through the handler and returns its engineering value.
func (d *Device) ReadPoint(ctx context.Context, code string) (float64, error) {
	p, err := d.lookup(code)
	if err != nil {
		return 0, err
	}
	raw, err := d.read(ctx, d.Handler(), p)
	if err != nil {
		return 0, err
	}
	return point.ToEngineering(p, raw), nil
}

// EditPoint writes an engineering value. A written control drives its related status
// point.
func (d *Device) EditPoint(ctx context.Context, code string, engineering float64) error {
	p, err := d.lookup(code)
	if err != nil {
		return err
	}
	raw, err := point.ToRaw(p, engineering)
	if err != nil {
		return err
	}
	h := d.Handler()
	if err = d.write(ctx, h, p, raw); err != nil {
		return err
	}
	klog.V(3).InfoS("Edited point", "channel", d.ID(), "code", code, "value", engineering, "raw", raw)

	ctl, ok := p.(*point.Control)
	if !ok || len(ctl.RelatedStatus()) == 0 {
		return nil
	}
	st, ok := d.points.GetByCode(ctl.RelatedStatus())
	if !ok || st.Kind() != constant.Status {
		klog.V(2).InfoS("Related status point not found", "channel", d.ID(), "control", code, "status", ctl.RelatedStatus())
		return nil
	}
	if d.role() == constant.RoleClient {
		info := st.Base()
		return info.Exclusive(func() error {
			info.SetRawValue(raw)
			return nil
		})
	}
	if err = d.write(ctx, h, st, raw); err != nil {
		klog.V(2).InfoS("Failed to drive related status point", "channel", d.ID(), "status", st.Code(), "err", err)
	}
	return nil
}

// EditMetadata updates name, slave, address, function code, decode code, scale,
// offset, enabled or the code itself. Storage is updated before memory.
func (d *Device) EditMetadata(ctx context.Context, code string, fields map[string]interface{}) (*runtime.PointRecord, error) {
	p, err := d.lookup(code)
	if err != nil {
		return nil, err
	}
	old := p.Record()
	merged, err := old.Merge(fields)
	if err != nil {
		return nil, err
	}
	if merged.Kind != old.Kind {
		return nil, errors.Wrap(constant.ErrPointKind, "kind is immutable")
	}
	if errs := runtime.ValidatePointRecord(merged, d.family(), field.NewPath("point")); len(errs) > 0 {
		if merged.Address != old.Address {
			return nil, errors.Wrap(constant.ErrAddressFormat, errs.ToAggregate().Error())
		}
		return nil, errors.Wrap(constant.ErrInvalidPoint, errs.ToAggregate().Error())
	}
	if merged.Kind.Numeric() && merged.ScaleOrDefault() == 0 {
		return nil, constant.ErrScaleZero
	}
	if merged.Code != code {
		if _, taken := d.points.GetByCode(merged.Code); taken {
			return nil, errors.Wrapf(constant.ErrDuplicateCode, "code %s", merged.Code)
		}
	}
	native, err := resolver.Resolve(d.family(), merged.Address)
	if err != nil {
		return nil, err
	}

	if err = d.store.UpdatePointMetadata(code, fields); err != nil {
		return nil, err
	}

	h := d.Handler()
	moved := merged.SlaveID != old.SlaveID || merged.Address != old.Address ||
		merged.FunctionCode != old.FunctionCode || merged.DecodeCode != old.DecodeCode || merged.Code != code
	rebuild := moved && h.RebuildOnMutation()
	if moved && !rebuild {
		if err = h.RemovePoints([]point.Point{p}); err != nil {
			klog.V(2).InfoS("Failed to unregister point", "channel", d.ID(), "code", code, "err", err)
		}
	}

	// 与读写同一把 io 锁, 轮询不会看到半更新的点位
	info := p.Base()
	err = info.Exclusive(func() error {
		info.SetName(merged.Name)
		info.SetAddress(merged.Address, native)
		info.SetFunctionCode(merged.FunctionCode)
		info.SetFormat(codec.Lookup(merged.DecodeCode))
		info.SetEnabled(merged.IsEnabled())
		if t, ok := point.TransformOf(p); ok {
			t.SetScaleOffset(merged.ScaleOrDefault(), merged.Offset)
			t.SetLimits(merged.MinLimit, merged.MaxLimit)
		}
		if err := d.points.MoveSlave(code, merged.SlaveID); err != nil {
			return err
		}
		return d.points.RenameCode(code, merged.Code)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case rebuild:
		if err = d.rebuild(ctx); err != nil {
			return nil, err
		}
	case moved:
		if err = h.AddPoints([]point.Point{p}); err != nil {
			return nil, err
		}
	}
	klog.V(3).InfoS("Edited point metadata", "channel", d.ID(), "code", code, "fields", fields)

	r := p.Record()
	r.ID, r.ChannelID = old.ID, d.ID()
	return r, nil
}

// EditLimits sets the engineering limits of a numeric point, max <= min disables them.
func (d *Device) EditLimits(code string, minLimit, maxLimit float64) error {
	p, err := d.lookup(code)
	if err != nil {
		return err
	}
	t, ok := point.TransformOf(p)
	if !ok {
		return errors.Wrapf(constant.ErrPointKind, "%s point has no limits", p.Kind())
	}
	if err = d.store.UpdatePointMetadata(code, map[string]interface{}{"minLimit": minLimit, "maxLimit": maxLimit}); err != nil {
		return err
	}
	t.SetLimits(minLimit, maxLimit)
	klog.V(3).InfoS("Edited point limits", "channel", d.ID(), "code", code, "min", minLimit, "max", maxLimit)
	return nil
}

// AddPoint creates a point in storage, then in memory, then registers it with the
// handler.
func (d *Device) AddPoint(ctx context.Context, record *runtime.PointRecord) (*runtime.PointRecord, error) {
	if errs := runtime.ValidatePointRecord(record, d.family(), field.NewPath("point")); len(errs) > 0 {
		return nil, errors.Wrap(constant.ErrInvalidPoint, errs.ToAggregate().Error())
	}
	if _, taken := d.points.GetByCode(record.Code); taken {
		return nil, errors.Wrapf(constant.ErrDuplicateCode, "code %s", record.Code)
	}
	p, err := point.New(record, d.family())
	if err != nil {
		return nil, err
	}

	record.ChannelID = d.ID()
	id, err := d.store.CreatePoint(record.ChannelID, record)
	if err != nil {
		return nil, err
	}
	if err = d.points.AddPoint(p); err != nil {
		if _, rerr := d.store.DeletePoint(record.Code); rerr != nil {
			klog.V(2).InfoS("Failed to roll back point", "code", record.Code, "err", rerr)
		}
		return nil, err
	}

	if h := d.Handler(); h.RebuildOnMutation() {
		err = d.rebuild(ctx)
	} else {
		err = h.AddPoints([]point.Point{p})
	}
	if err != nil {
		return nil, err
	}
	klog.V(3).InfoS("Added point", "channel", record.ChannelID, "code", record.Code, "id", id)

	r := p.Record()
	r.ID, r.ChannelID = id, record.ChannelID
	return r, nil
}

// DeletePoint removes a point from storage, then from memory and the handler.
func (d *Device) DeletePoint(ctx context.Context, code string) error {
	p, err := d.lookup(code)
	if err != nil {
		return err
	}
	deleted, err := d.store.DeletePoint(code)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.Wrapf(constant.ErrPointNotFound, "code %s", code)
	}
	if _, err = d.points.RemovePoint(code); err != nil {
		return err
	}

	if h := d.Handler(); h.RebuildOnMutation() {
		err = d.rebuild(ctx)
	} else {
		err = h.RemovePoints([]point.Point{p})
	}
	klog.V(3).InfoS("Deleted point", "channel", d.ID(), "code", code)
	return err
}

// ImportPoints replaces every point of the channel with records.
func (d *Device) ImportPoints(ctx context.Context, records []*runtime.PointRecord) error {
	ps, err := point.NewBatch(records, d.family())
	if err != nil {
		return err
	}
	if err = pointmanager.New().AddPoints(ps); err != nil {
		return err
	}
	id := d.ID()
	for _, r := range records {
		r.ChannelID = id
	}
	if err = d.store.SavePoints(id, records); err != nil {
		return err
	}

	d.StopAutoRead()
	autoRead := d.Channel().AutoRead
	d.mu.Lock()
	removed, kept, added := differenceutil.DifferenceAndIntersection(d.points.All(), records,
		func(p point.Point) string { return p.Base().Code() },
		func(r *runtime.PointRecord) string { return r.Code })
	err = d.points.Replace(ps, defaultSlaves(d.family())...)
	if err == nil {
		err = d.rebuildLocked(ctx)
	}
	running := d.status == runtime.Running
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if autoRead && running {
		d.StartAutoRead()
	}
	klog.V(3).InfoS("Imported points", "channel", id, "count", len(ps), "added", len(added), "kept", len(kept), "removed", len(removed))
	klog.V(5).InfoS("Removed points by import", "channel", id, "codes", removed)
	return nil
}

// AddSlave registers an empty slave, 1..255.
func (d *Device) AddSlave(slave int) error {
	if err := d.points.AddSlave(slave); err != nil {
		return err
	}
	if reg, ok := d.Handler().(protocol.SlaveRegistrar); ok {
		if err := reg.AddSlave(slave); err != nil && !errors.Is(err, constant.ErrDuplicateSlave) {
			return err
		}
	}
	return nil
}

// ResetValues zeroes every point. Served tables are written too so the next poll
// does not bring the old values back.
func (d *Device) ResetValues(ctx context.Context) {
	if d.role() == constant.RoleClient {
		d.points.ResetAllValues()
		return
	}
	h := d.Handler()
	for _, p := range d.points.All() {
		if err := d.write(ctx, h, p, 0); err != nil {
			klog.V(2).InfoS("Failed to reset point", "channel", d.ID(), "code", p.Code(), "err", err)
			info := p.Base()
			_ = info.Exclusive(func() error {
				info.SetRawValue(0)
				return nil
			})
		}
	}
}

// PointView a point as shown to operators.
type PointView struct {
	*runtime.PointRecord
	EngineeringValue float64             `json:"engineeringValue"`
	AccessMode       constant.AccessMode `json:"accessMode"`
}

func newPointView(channelID string, p point.Point) *PointView {
	r := p.Record()
	r.ChannelID = channelID
	return &PointView{
		PointRecord:      r,
		EngineeringValue: point.EngineeringValue(p),
		AccessMode:       constant.PointKindAccessMode[p.Kind()],
	}
}

// ListPoints filters points by slave, kind, code and name, pageIndex starts at 1.
func (d *Device) ListPoints(filter *runtime.PointFilter, pageIndex, pageSize int) ([]*PointView, int) {
	if pageIndex < 1 {
		pageIndex = 1
	}
	if pageSize <= 0 {
		pageSize = runtime.DefaultPageSize
	}
	if pageSize > runtime.MaxPageSize {
		pageSize = runtime.MaxPageSize
	}

	predicates := runtime.ParsePointFilter(filter)
	matched := make([]point.Point, 0)
	for _, p := range d.points.All() {
		if runtime.Match[runtime.Labeled](p, predicates) {
			matched = append(matched, p)
		}
	}

	id := d.ID()
	views := make([]*PointView, 0, pageSize)
	for i := (pageIndex - 1) * pageSize; i < len(matched) && len(views) < pageSize; i++ {
		views = append(views, newPointView(id, matched[i]))
	}
	return views, len(matched)
}

func (d *Device) GetPoint(code string) (*PointView, error) {
	p, err := d.lookup(code)
	if err != nil {
		return nil, err
	}
	return newPointView(d.ID(), p), nil
}

// MessageView a captured frame typed from the channel's point of view.
type MessageView struct {
	capture.Message
	Type string `json:"type"`
}

const (
	MessageRequest  = "Request"
	MessageResponse = "Response"
)

// Messages returns the last limit captured frames. A client sends requests, a server
// receives them.
func (d *Device) Messages(limit int) []*MessageView {
	requestDirection := capture.RX
	if d.role() == constant.RoleClient {
		requestDirection = capture.TX
	}
	msgs := d.Handler().Messages(limit)
	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		t := MessageResponse
		if m.Direction == requestDirection {
			t = MessageRequest
		}
		views = append(views, &MessageView{Message: m, Type: t})
	}
	return views
}

func (d *Device) ClearMessages() {
	d.Handler().ClearMessages()
}
