package channel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"emssimulate/pkg/capture"
	"emssimulate/pkg/point"
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	*protocol.Base
	rebuild   bool
	blocking  bool
	readDelay time.Duration

	mu      sync.Mutex
	writes  map[string]float64
	added   []string
	removed []string
	slaves  []int
	failing map[string]bool
	remote  map[string]float64
}

func (h *fakeHandler) Initialize(options map[string]interface{}) error {
	return h.InitializeWith(func() error { return nil })
}

func (h *fakeHandler) Start(ctx context.Context) error {
	return h.StartWith(ctx, func(ctx context.Context) error { return nil })
}

func (h *fakeHandler) Stop(ctx context.Context) error {
	return h.StopWith(ctx, func(ctx context.Context) error { return nil })
}

func (h *fakeHandler) Read(ctx context.Context, p point.Point) (float64, error) {
	if h.readDelay > 0 {
		time.Sleep(h.readDelay)
	}
	var v float64
	err := h.Guard(true, func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.failing[p.Code()] {
			return constant.ErrConnection
		}
		v = p.Base().RawValue()
		if remote, ok := h.remote[p.Code()]; ok {
			v = remote
		}
		h.Capture.RecordTx([]byte{0x01}, "read "+p.Code())
		h.Capture.RecordRx([]byte{0x02}, "value "+p.Code())
		return nil
	})
	return v, err
}

func (h *fakeHandler) Write(ctx context.Context, p point.Point, raw float64) error {
	return h.Guard(false, func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.writes[p.Code()] = raw
		p.Base().SetRawValue(raw)
		return nil
	})
}

func (h *fakeHandler) AddPoints(ps []point.Point) error {
	if h.rebuild && h.State() == protocol.Running {
		return constant.ErrTopologyFrozen
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range ps {
		h.added = append(h.added, p.Code())
	}
	return nil
}

func (h *fakeHandler) RemovePoints(ps []point.Point) error {
	if h.rebuild && h.State() == protocol.Running {
		return constant.ErrTopologyFrozen
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range ps {
		h.removed = append(h.removed, p.Code())
	}
	return nil
}

func (h *fakeHandler) RebuildOnMutation() bool { return h.rebuild }

func (h *fakeHandler) Capability() protocol.Capability {
	if h.blocking {
		return protocol.BlockingWrapped
	}
	return protocol.NativeAsync
}

func (h *fakeHandler) AddSlave(slave int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.slaves {
		if s == slave {
			return constant.ErrDuplicateSlave
		}
	}
	h.slaves = append(h.slaves, slave)
	return nil
}

func (h *fakeHandler) Slaves() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.slaves...)
}

func (h *fakeHandler) setRemote(code string, raw float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remote[code] = raw
}

func (h *fakeHandler) written(code string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.writes[code]
	return v, ok
}

type fakeFactory struct {
	mu        sync.Mutex
	rebuild   bool
	blocking  bool
	readDelay time.Duration
	handlers  []*fakeHandler
}

func (f *fakeFactory) new(pt constant.ProtocolType, name string, points *pointmanager.PointManager, captureCapacity int) (protocol.Handler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandler{
		Base:      protocol.NewBase(name, points, captureCapacity),
		rebuild:   f.rebuild,
		blocking:  f.blocking,
		readDelay: f.readDelay,
		writes:    make(map[string]float64),
		failing:   make(map[string]bool),
		remote:    make(map[string]float64),
	}
	f.handlers = append(f.handlers, h)
	return h, nil
}

func (f *fakeFactory) last() *fakeHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[len(f.handlers)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func float(v float64) *float64 { return &v }

func newTestDevice(t *testing.T, pt constant.ProtocolType, rebuild bool, records ...*runtime.PointRecord) (*Device, *fakeFactory, storage.PointStore) {
	factory := &fakeFactory{rebuild: rebuild}
	d, store := newTestDeviceWith(t, pt, factory, DeviceOptions{PollInterval: 10 * time.Millisecond}, records...)
	return d, factory, store
}

func newTestDeviceWith(t *testing.T, pt constant.ProtocolType, factory *fakeFactory, options DeviceOptions, records ...*runtime.PointRecord) (*Device, storage.PointStore) {
	store, err := storage.NewPointStore(storage.DriverFs, t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if len(records) > 0 {
		require.NoError(t, store.SavePoints("ch1", records))
	}

	options.NewHandler = factory.new
	ch := &runtime.Channel{ObjectMeta: runtime.ObjectMeta{Name: "test", ID: "ch1"}, ProtocolType: pt}
	d, err := NewDevice(ch, store, options, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d, store
}

func registerPoints() []*runtime.PointRecord {
	return []*runtime.PointRecord{
		{Kind: constant.Measurement, Code: "M1", Name: "voltage", SlaveID: 1, Address: "100", FunctionCode: 3, Scale: float(0.1)},
		{Kind: constant.Measurement, Code: "M2", Name: "current", SlaveID: 1, Address: "102", FunctionCode: 3, Enabled: new(bool)},
		{Kind: constant.Status, Code: "S1", Name: "breaker", SlaveID: 1, Address: "10", FunctionCode: 2},
		{Kind: constant.Control, Code: "C1", Name: "breaker on", SlaveID: 1, Address: "10", FunctionCode: 5, RelatedStatus: "S1"},
		{Kind: constant.Setpoint, Code: "P1", Name: "power", SlaveID: 1, Address: "200", FunctionCode: 6},
	}
}

func TestDeviceLoadAndLifecycle(t *testing.T) {
	d, factory, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()

	assert.Equal(t, 5, d.Points().Count())
	assert.Len(t, factory.last().added, 5)
	assert.Equal(t, []int{0, 1}, d.Points().Slaves())
	assert.Equal(t, runtime.Stopped, d.Status())

	require.NoError(t, d.Start(ctx))
	info := d.Info()
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, 5, info.PointCount)
	assert.Empty(t, info.Error)

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, runtime.Stopped, d.Status())
	assert.Equal(t, protocol.Stopped, d.Handler().State())
}

func TestDeviceEditPointDrivesRelatedStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("server", func(t *testing.T) {
		d, factory, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
		require.NoError(t, d.Start(ctx))
		require.NoError(t, d.EditPoint(ctx, "C1", 1))

		v, ok := factory.last().written("S1")
		assert.True(t, ok)
		assert.Equal(t, 1.0, v)
	})

	t.Run("client", func(t *testing.T) {
		d, factory, _ := newTestDevice(t, constant.ModbusTcpClient, false, registerPoints()...)
		require.NoError(t, d.Start(ctx))
		require.NoError(t, d.EditPoint(ctx, "C1", 5))

		v, ok := factory.last().written("C1")
		assert.True(t, ok)
		assert.Equal(t, 1.0, v)
		_, ok = factory.last().written("S1")
		assert.False(t, ok)
		s1, _ := d.Points().GetByCode("S1")
		assert.Equal(t, 1.0, s1.Base().RawValue())
	})

	d, _, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	assert.ErrorIs(t, d.EditPoint(ctx, "missing", 1), constant.ErrPointNotFound)
}

func TestDeviceEditLimits(t *testing.T) {
	d, factory, store := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	require.NoError(t, d.EditLimits("M1", 0, 100))
	assert.ErrorIs(t, d.EditPoint(ctx, "M1", 150), constant.ErrValueLimit)
	require.NoError(t, d.EditPoint(ctx, "M1", 50))
	v, _ := factory.last().written("M1")
	assert.Equal(t, 500.0, v)

	assert.ErrorIs(t, d.EditLimits("S1", 0, 1), constant.ErrPointKind)

	records, err := store.LoadPoints("ch1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, records[0].MaxLimit)

	// max <= min disables the check
	require.NoError(t, d.EditLimits("M1", 0, 0))
	assert.NoError(t, d.EditPoint(ctx, "M1", 150))
}

func TestDeviceEditMetadata(t *testing.T) {
	d, factory, store := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()

	r, err := d.EditMetadata(ctx, "M1", map[string]interface{}{"name": "bus voltage", "code": "M10", "address": "110", "scale": 0.01})
	require.NoError(t, err)
	assert.Equal(t, "M10", r.Code)
	assert.Equal(t, "bus voltage", r.Name)
	assert.Equal(t, "110", r.Address)
	assert.Equal(t, 0.01, r.ScaleOrDefault())

	_, ok := d.Points().GetByCode("M1")
	assert.False(t, ok)
	p, ok := d.Points().GetByCode("M10")
	require.True(t, ok)
	assert.Equal(t, "110", p.Base().NativeAddress())
	assert.Contains(t, factory.last().removed, "M1")
	assert.Contains(t, factory.last().added, "M10")

	records, err := store.LoadPoints("ch1")
	require.NoError(t, err)
	assert.Equal(t, "M10", records[0].Code)
	assert.Equal(t, "bus voltage", records[0].Name)

	_, err = d.EditMetadata(ctx, "M10", map[string]interface{}{"kind": "status"})
	assert.ErrorIs(t, err, constant.ErrPointKind)
	_, err = d.EditMetadata(ctx, "M10", map[string]interface{}{"code": "S1"})
	assert.ErrorIs(t, err, constant.ErrDuplicateCode)
	_, err = d.EditMetadata(ctx, "M10", map[string]interface{}{"scale": 0})
	assert.ErrorIs(t, err, constant.ErrScaleZero)
	_, err = d.EditMetadata(ctx, "M10", map[string]interface{}{"address": "x99"})
	assert.ErrorIs(t, err, constant.ErrAddressFormat)

	// slave moves keep the point reachable by its slave
	_, err = d.EditMetadata(ctx, "P1", map[string]interface{}{"slaveId": 3})
	require.NoError(t, err)
	assert.Len(t, d.Points().GetBySlave(3).Setpoints, 1)
}

func TestDeviceAddDeletePoint(t *testing.T) {
	d, factory, store := newTestDevice(t, constant.ModbusTcp, false)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	r, err := d.AddPoint(ctx, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", SlaveID: 1, Address: "1", FunctionCode: 4})
	require.NoError(t, err)
	assert.Greater(t, r.ID, int64(0))
	assert.Equal(t, "ch1", r.ChannelID)
	assert.Contains(t, factory.last().added, "M1")

	_, err = d.AddPoint(ctx, &runtime.PointRecord{Kind: constant.Status, Code: "M1", Address: "2"})
	assert.ErrorIs(t, err, constant.ErrDuplicateCode)
	_, err = d.AddPoint(ctx, &runtime.PointRecord{Kind: constant.Status, Code: "S9", Address: "not-an-address"})
	assert.ErrorIs(t, err, constant.ErrInvalidPoint)

	records, err := store.LoadPoints("ch1")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, d.DeletePoint(ctx, "M1"))
	assert.Equal(t, 0, d.Points().Count())
	assert.Contains(t, factory.last().removed, "M1")
	assert.ErrorIs(t, d.DeletePoint(ctx, "M1"), constant.ErrPointNotFound)

	records, err = store.LoadPoints("ch1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeviceRebuildOnMutation(t *testing.T) {
	d, factory, _ := newTestDevice(t, constant.Iec104Server, true)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	first := factory.last()

	_, err := d.AddPoint(ctx, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", Address: "16385"})
	require.NoError(t, err)
	assert.Equal(t, 2, factory.count())
	assert.Equal(t, protocol.Stopped, first.State())
	assert.Equal(t, protocol.Running, factory.last().State())
	assert.Contains(t, factory.last().added, "M1")
	assert.Equal(t, runtime.Running, d.Status())

	require.NoError(t, d.DeletePoint(ctx, "M1"))
	assert.Equal(t, 3, factory.count())
	assert.Empty(t, factory.last().added)
}

func TestDevicePollOnce(t *testing.T) {
	d, factory, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	m1, _ := d.Points().GetByCode("M1")
	m1.Base().SetRawValue(2300)
	factory.last().failing["S1"] = true

	values := d.PollOnce(ctx)
	// M2 is disabled, S1 fails, controls and setpoints are never polled
	require.Len(t, values, 1)
	assert.Equal(t, "M1", values[0].DataPointId)
	assert.InDelta(t, 230.0, values[0].Value, 1e-9)
}

func TestDeviceAutoRead(t *testing.T) {
	store, err := storage.NewPointStore(storage.DriverFs, t.TempDir(), "")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SavePoints("ch1", registerPoints()))

	var mu sync.Mutex
	passes := 0
	publish := func(ch *runtime.Channel, values []runtime.PointData) {
		mu.Lock()
		defer mu.Unlock()
		passes++
	}
	factory := &fakeFactory{}
	ch := &runtime.Channel{ObjectMeta: runtime.ObjectMeta{ID: "ch1"}, ProtocolType: constant.ModbusTcp, AutoRead: true}
	d, err := NewDevice(ch, store, DeviceOptions{PollInterval: 5 * time.Millisecond, NewHandler: factory.new}, publish)
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.AutoReadRunning())
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return passes >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.AutoReadRunning())
	mu.Lock()
	stopped := passes
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, stopped, passes)
	mu.Unlock()
}

func TestDeviceMessages(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		pt      constant.ProtocolType
		request capture.Direction
	}{
		{constant.ModbusTcp, capture.RX},
		{constant.ModbusTcpClient, capture.TX},
	} {
		d, _, _ := newTestDevice(t, tc.pt, false, registerPoints()...)
		require.NoError(t, d.Start(ctx))
		_, err := d.ReadPoint(ctx, "M1")
		require.NoError(t, err)

		msgs := d.Messages(10)
		require.Len(t, msgs, 2)
		for _, m := range msgs {
			if m.Direction == tc.request {
				assert.Equal(t, MessageRequest, m.Type)
			} else {
				assert.Equal(t, MessageResponse, m.Type)
			}
		}
		d.ClearMessages()
		assert.Empty(t, d.Messages(10))
	}
}

func TestDeviceListPoints(t *testing.T) {
	d, _, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)

	views, total := d.ListPoints(&runtime.PointFilter{}, 1, 2)
	assert.Equal(t, 5, total)
	assert.Len(t, views, 2)

	views, total = d.ListPoints(&runtime.PointFilter{}, 3, 2)
	assert.Equal(t, 5, total)
	assert.Len(t, views, 1)

	views, total = d.ListPoints(&runtime.PointFilter{Kind: "measurement"}, 1, 0)
	assert.Equal(t, 2, total)
	require.Len(t, views, 2)
	assert.Equal(t, constant.AccessModeReadOnly, views[0].AccessMode)

	views, _ = d.ListPoints(&runtime.PointFilter{Kind: "setpoint"}, 1, 10)
	require.Len(t, views, 1)
	assert.Equal(t, constant.AccessModeReadWrite, views[0].AccessMode)
}

func TestDeviceAddSlave(t *testing.T) {
	d, factory, _ := newTestDevice(t, constant.ModbusTcp, false)

	require.NoError(t, d.AddSlave(7))
	assert.True(t, d.Points().HasSlave(7))
	assert.Contains(t, factory.last().Slaves(), 7)

	assert.ErrorIs(t, d.AddSlave(7), constant.ErrDuplicateSlave)
	assert.ErrorIs(t, d.AddSlave(0), constant.ErrInvalidSlave)
	assert.ErrorIs(t, d.AddSlave(256), constant.ErrInvalidSlave)
}

func TestDeviceImportPoints(t *testing.T) {
	d, _, store := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	err := d.ImportPoints(ctx, []*runtime.PointRecord{
		{Kind: constant.Measurement, Code: "X", Address: "1"},
		{Kind: constant.Measurement, Code: "X", Address: "2"},
	})
	assert.True(t, errors.Is(err, constant.ErrDuplicateCode))
	assert.Equal(t, 5, d.Points().Count())

	require.NoError(t, d.ImportPoints(ctx, []*runtime.PointRecord{
		{Kind: constant.Measurement, Code: "N1", SlaveID: 2, Address: "1"},
	}))
	assert.Equal(t, 1, d.Points().Count())
	assert.Equal(t, runtime.Running, d.Status())
	records, err := store.LoadPoints("ch1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "N1", records[0].Code)
}

func TestDeviceResetValues(t *testing.T) {
	d, factory, _ := newTestDevice(t, constant.ModbusTcp, false, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.EditPoint(ctx, "P1", 42))

	d.ResetValues(ctx)
	v, ok := factory.last().written("P1")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	p1, _ := d.Points().GetByCode("P1")
	assert.Equal(t, 0.0, p1.Base().RawValue())
}

func TestDeviceTimedOutReadKeepsValue(t *testing.T) {
	factory := &fakeFactory{blocking: true, readDelay: 200 * time.Millisecond}
	d, _ := newTestDeviceWith(t, constant.ModbusTcpClient, factory,
		DeviceOptions{PollInterval: time.Second, BridgeWorkers: 1, HandoffTimeout: 50 * time.Millisecond}, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	factory.last().setRemote("M1", 42)

	m1, _ := d.Points().GetByCode("M1")
	before := m1.Base().RawValue()
	_, err := d.ReadPoint(ctx, "M1")
	assert.ErrorIs(t, err, constant.ErrHandoffTimeout)

	// 等待迟到的读取在 worker 上结束
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, m1.Base().RawValue())
	assert.Empty(t, d.PollOnce(ctx))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, m1.Base().RawValue())
}

func TestDeviceBlockingReadThroughBridge(t *testing.T) {
	factory := &fakeFactory{blocking: true}
	d, _ := newTestDeviceWith(t, constant.ModbusTcpClient, factory,
		DeviceOptions{PollInterval: time.Second, BridgeWorkers: 2, HandoffTimeout: time.Second}, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	factory.last().setRemote("M1", 2300)

	v, err := d.ReadPoint(ctx, "M1")
	require.NoError(t, err)
	assert.InDelta(t, 230.0, v, 1e-9)
	m1, _ := d.Points().GetByCode("M1")
	assert.Equal(t, 2300.0, m1.Base().RawValue())
}

func TestDeviceConcurrentPollAndEdit(t *testing.T) {
	factory := &fakeFactory{blocking: true}
	d, _ := newTestDeviceWith(t, constant.ModbusTcp, factory,
		DeviceOptions{PollInterval: time.Second, BridgeWorkers: 4, HandoffTimeout: 5 * time.Second}, registerPoints()...)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	valid := func(v float64) bool {
		for _, want := range []float64{0, 10, 20} {
			if math.Abs(v-want) < 1e-9 {
				return true
			}
		}
		return false
	}

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, d.EditPoint(ctx, "M1", float64(10*(1+(i+w)%2))))
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v, err := d.ReadPoint(ctx, "M1")
				if assert.NoError(t, err) {
					assert.True(t, valid(v), "torn value %v", v)
				}
				for _, pd := range d.PollOnce(ctx) {
					if pd.DataPointId == "M1" {
						v, _ := pd.Value.(float64)
						assert.True(t, valid(v), "torn value %v", pd.Value)
					}
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			name := fmt.Sprintf("voltage %d", i)
			_, err := d.EditMetadata(ctx, "M1", map[string]interface{}{"name": name})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	v, err := d.ReadPoint(ctx, "M1")
	require.NoError(t, err)
	assert.True(t, valid(v))
}
