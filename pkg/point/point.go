package point

import (
	"math"
	"sync"

	"emssimulate/pkg/codec"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Point one addressable value of a channel. Points are owned by a PointManager,
// protocol handlers only borrow them.
type Point interface {
	runtime.Labeled
	Base() *Info
	// Record returns a snapshot suitable for storage and the operator api.
	Record() *runtime.PointRecord
}

var (
	_ Point = (*Measurement)(nil)
	_ Point = (*Status)(nil)
	_ Point = (*Control)(nil)
	_ Point = (*Setpoint)(nil)
)

// Info fields shared by all point kinds.
type Info struct {
	code     atomic.String
	rawValue atomic.Float64
	enabled  atomic.Bool
	slave    atomic.Int32

	// io 互斥, 轮询读与人工写同一点位时串行
	io sync.Mutex

	mu            sync.RWMutex
	name          string
	address       string
	nativeAddress string
	format        *codec.DecodeFormat
	functionCode  uint8
}

func newInfo(record *runtime.PointRecord, nativeAddress string) *Info {
	info := &Info{
		name:          record.Name,
		address:       record.Address,
		nativeAddress: nativeAddress,
		format:        codec.Lookup(record.DecodeCode),
		functionCode:  record.FunctionCode,
	}
	info.code.Store(record.Code)
	info.rawValue.Store(record.Value)
	info.enabled.Store(record.IsEnabled())
	info.slave.Store(int32(record.SlaveID))
	return info
}

func (i *Info) Code() string {
	return i.code.Load()
}

// Rename only called by the point manager while it holds its write lock.
func (i *Info) Rename(code string) {
	i.code.Store(code)
}

func (i *Info) Slave() int {
	return int(i.slave.Load())
}

// MoveSlave only called by the point manager while it holds its write lock.
func (i *Info) MoveSlave(slave int) {
	i.slave.Store(int32(slave))
}

func (i *Info) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name
}

func (i *Info) SetName(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.name = name
}

// Address configured address string.
func (i *Info) Address() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.address
}

// NativeAddress address resolved for the channel protocol.
func (i *Info) NativeAddress() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.nativeAddress
}

func (i *Info) SetAddress(address, nativeAddress string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.address = address
	i.nativeAddress = nativeAddress
}

func (i *Info) Format() *codec.DecodeFormat {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.format
}

func (i *Info) SetFormat(format *codec.DecodeFormat) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.format = format
}

func (i *Info) FunctionCode() uint8 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.functionCode
}

func (i *Info) SetFunctionCode(fc uint8) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.functionCode = fc
}

func (i *Info) RawValue() float64 {
	return i.rawValue.Load()
}

func (i *Info) SetRawValue(v float64) {
	i.rawValue.Store(v)
}

func (i *Info) Enabled() bool {
	return i.enabled.Load()
}

func (i *Info) SetEnabled(enabled bool) {
	i.enabled.Store(enabled)
}

// Exclusive runs fn while holding the point's io lock.
func (i *Info) Exclusive(fn func() error) error {
	i.io.Lock()
	defer i.io.Unlock()
	return fn()
}

func (i *Info) fill(record *runtime.PointRecord) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	record.Code = i.code.Load()
	record.Name = i.name
	record.SlaveID = i.Slave()
	record.Address = i.address
	record.FunctionCode = i.functionCode
	record.DecodeCode = i.format.Code
	record.Value = i.rawValue.Load()
	enabled := i.enabled.Load()
	record.Enabled = &enabled
}

// Transform engineering conversion of numeric points: eng = raw*scale + offset.
type Transform struct {
	mu       sync.RWMutex
	scale    float64
	offset   float64
	minLimit float64
	maxLimit float64
}

func newTransform(record *runtime.PointRecord) *Transform {
	return &Transform{
		scale:    record.ScaleOrDefault(),
		offset:   record.Offset,
		minLimit: record.MinLimit,
		maxLimit: record.MaxLimit,
	}
}

func (t *Transform) Engineering(raw float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return raw*t.scale + t.offset
}

// Raw inverse of Engineering, rounded to the nearest integer.
func (t *Transform) Raw(engineering float64) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.scale == 0 {
		return 0, constant.ErrScaleZero
	}
	return math.Round((engineering - t.offset) / t.scale), nil
}

// CheckLimit only enforced when maxLimit > minLimit.
func (t *Transform) CheckLimit(engineering float64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.maxLimit > t.minLimit && (engineering < t.minLimit || engineering > t.maxLimit) {
		return errors.Wrapf(constant.ErrValueLimit, "%v not in [%v, %v]", engineering, t.minLimit, t.maxLimit)
	}
	return nil
}

func (t *Transform) Scale() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scale
}

func (t *Transform) Offset() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset
}

func (t *Transform) SetScaleOffset(scale, offset float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scale = scale
	t.offset = offset
}

func (t *Transform) Limits() (float64, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.minLimit, t.maxLimit
}

func (t *Transform) SetLimits(minLimit, maxLimit float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minLimit = minLimit
	t.maxLimit = maxLimit
}

func (t *Transform) fill(record *runtime.PointRecord) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	scale := t.scale
	record.Scale = &scale
	record.Offset = t.offset
	record.MinLimit = t.minLimit
	record.MaxLimit = t.maxLimit
}

// Measurement 遥测
type Measurement struct {
	*Info
	*Transform
}

func (m *Measurement) Kind() constant.PointKind { return constant.Measurement }
func (m *Measurement) Base() *Info              { return m.Info }

func (m *Measurement) Record() *runtime.PointRecord {
	r := &runtime.PointRecord{Kind: constant.Measurement}
	m.Info.fill(r)
	m.Transform.fill(r)
	return r
}

// Setpoint 遥调
type Setpoint struct {
	*Info
	*Transform
}

func (s *Setpoint) Kind() constant.PointKind { return constant.Setpoint }
func (s *Setpoint) Base() *Info              { return s.Info }

func (s *Setpoint) Record() *runtime.PointRecord {
	r := &runtime.PointRecord{Kind: constant.Setpoint}
	s.Info.fill(r)
	s.Transform.fill(r)
	return r
}

// Status 遥信
type Status struct {
	*Info
	BitOffset uint8
}

func (s *Status) Kind() constant.PointKind { return constant.Status }
func (s *Status) Base() *Info              { return s.Info }

func (s *Status) Record() *runtime.PointRecord {
	r := &runtime.PointRecord{Kind: constant.Status, BitOffset: s.BitOffset}
	s.Info.fill(r)
	return r
}

// Control 遥控
type Control struct {
	*Info
	BitOffset   uint8
	CommandType constant.CommandType

	related atomic.String
}

func (c *Control) Kind() constant.PointKind { return constant.Control }
func (c *Control) Base() *Info              { return c.Info }

// RelatedStatus code of the status point driven by this control, may be empty.
func (c *Control) RelatedStatus() string {
	return c.related.Load()
}

func (c *Control) SetRelatedStatus(code string) {
	c.related.Store(code)
}

func (c *Control) Record() *runtime.PointRecord {
	r := &runtime.PointRecord{
		Kind:          constant.Control,
		BitOffset:     c.BitOffset,
		CommandType:   c.CommandType,
		RelatedStatus: c.RelatedStatus(),
	}
	c.Info.fill(r)
	return r
}

// TransformOf returns the engineering transform of numeric points.
func TransformOf(p Point) (*Transform, bool) {
	switch v := p.(type) {
	case *Measurement:
		return v.Transform, true
	case *Setpoint:
		return v.Transform, true
	default:
		return nil, false
	}
}

// BitOffsetOf returns the bit position of boolean points.
func BitOffsetOf(p Point) uint8 {
	switch v := p.(type) {
	case *Status:
		return v.BitOffset
	case *Control:
		return v.BitOffset
	default:
		return 0
	}
}

// EngineeringValue current value in operator units. Boolean kinds report the raw value.
func EngineeringValue(p Point) float64 {
	raw := p.Base().RawValue()
	if t, ok := TransformOf(p); ok {
		return t.Engineering(raw)
	}
	return raw
}

// ToEngineering converts a raw value of p into operator units.
func ToEngineering(p Point, raw float64) float64 {
	if t, ok := TransformOf(p); ok {
		return t.Engineering(raw)
	}
	return raw
}

// ToRaw converts an operator value into the raw value of p. Numeric kinds check
// their limits first, boolean kinds collapse to 0 or 1.
func ToRaw(p Point, engineering float64) (float64, error) {
	if t, ok := TransformOf(p); ok {
		if err := t.CheckLimit(engineering); err != nil {
			return 0, err
		}
		return t.Raw(engineering)
	}
	if engineering != 0 {
		return 1, nil
	}
	return 0, nil
}
