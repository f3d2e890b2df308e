package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"emssimulate/pkg/apis"
	"emssimulate/pkg/metrics"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/storage"
	"emssimulate/pkg/utils/randutil"
	"emssimulate/pkg/utils/uuidutil"
	v1 "emssimulate/pkg/v1"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ChannelStore persistence of channel descriptors.
type ChannelStore interface {
	Create(obj *runtime.Channel) (*runtime.Channel, error)
	Update(obj *runtime.Channel, version string) (*runtime.Channel, error)
	Delete(obj *runtime.Channel) (*runtime.Channel, error)
	LoadResource() ([]*runtime.Channel, error)
}

type Option func(*Manager)

func WithMqttClient(client mqtt.Client, qos byte) Option {
	return func(m *Manager) {
		m.mqttClient = client
		m.qos = qos
	}
}

func WithDeviceOptions(options DeviceOptions) Option {
	return func(m *Manager) {
		m.deviceOptions = options
	}
}

func WithCloser(label string, closer func(context.Context) error) Option {
	return func(m *Manager) {
		m.closers = append(m.closers, runtime.LabeledCloser{Label: label, Closer: closer})
	}
}

type Manager struct {
	stationID     string
	mqttClient    mqtt.Client
	qos           byte
	mu            *sync.Mutex
	devices       *sync.Map
	store         ChannelStore
	points        storage.PointStore
	deviceOptions DeviceOptions
	closers       []runtime.LabeledCloser
}

func NewManager(store ChannelStore, points storage.PointStore, stationID string, opts ...Option) *Manager {
	m := &Manager{
		stationID: stationID,
		mu:        &sync.Mutex{},
		devices:   &sync.Map{},
		store:     store,
		points:    points,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init builds a device per stored channel and starts the enabled ones.
func (m *Manager) Init(ctx context.Context) {
	channels, err := m.store.LoadResource()
	if err != nil {
		klog.V(2).InfoS("Failed to load channels", "err", err)
		return
	}
	for _, ch := range channels {
		d, err := NewDevice(ch, m.points, m.deviceOptions, m.publish)
		if err != nil {
			klog.V(2).InfoS("Failed to build channel", "channelId", ch.GetID(), "err", err)
			continue
		}
		m.devices.Store(ch.GetID(), d)
		if ch.Enabled {
			if err = d.Start(ctx); err != nil {
				klog.V(2).InfoS("Failed to start channel", "channelId", ch.GetID(), "err", err)
			}
		}
	}
	klog.V(1).InfoS("Channels loaded", "count", len(channels))
}

func (m *Manager) CreateChannel(ctx context.Context, object *v1.Channel) (*runtime.ChannelInfo, error) {
	ch, ok := object.ToChannel()
	if !ok {
		return nil, errors.Wrapf(constant.ErrProtocolType, "protocol type %s", object.ProtocolType)
	}
	if errs := runtime.ValidateChannel(ch); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	ch.SetID(uuidutil.UUID())
	ch.SetVersion(strconv.FormatUint(randutil.Uint64n(), 10))
	ch.SetModTime(time.Now())

	d, err := NewDevice(ch, m.points, m.deviceOptions, m.publish)
	if err != nil {
		return nil, err
	}
	if _, err = m.store.Create(ch); err != nil {
		klog.V(2).InfoS("Failed to store channel", "err", err)
		return nil, err
	}
	m.devices.Store(ch.GetID(), d)
	klog.V(3).InfoS("Created channel", "channelId", ch.GetID(), "protocol", ch.ProtocolType)

	if ch.Enabled {
		if err = d.Start(ctx); err != nil {
			klog.V(2).InfoS("Failed to start channel", "channelId", ch.GetID(), "err", err)
		}
	}
	return d.Info(), nil
}

func (m *Manager) DeleteChannel(ctx context.Context, id string, version string) (*runtime.ChannelInfo, error) {
	d, err := m.GetDevice(id)
	if err != nil {
		return nil, err
	}
	ch := d.Channel()
	if ch.GetVersion() != version {
		return nil, apis.ErrMismatch
	}
	if _, err = m.store.Delete(ch); err != nil {
		klog.V(2).InfoS("Failed to delete channel", "channelId", id, "err", err)
		return nil, err
	}
	info := d.Info()
	if err = d.Close(ctx); err != nil {
		klog.V(2).InfoS("Failed to stop channel", "channelId", id, "err", err)
	}
	if err = m.points.DeleteChannel(id); err != nil {
		klog.V(2).InfoS("Failed to delete points of channel", "channelId", id, "err", err)
	}
	metrics.Forget(id)
	m.devices.Delete(id)
	klog.V(3).InfoS("Deleted channel", "channelId", id)
	return info, nil
}

// UpdateChannel replaces name, options, topic and flags. The protocol type of a channel
// can not change since its points are bound to the protocol addressing.
func (m *Manager) UpdateChannel(ctx context.Context, id string, version string, object *v1.Channel) (*runtime.ChannelInfo, error) {
	d, err := m.GetDevice(id)
	if err != nil {
		return nil, err
	}
	old := d.Channel()
	if old.GetVersion() != version {
		return nil, apis.ErrMismatch
	}
	ch, ok := object.ToChannel()
	if !ok {
		return nil, errors.Wrapf(constant.ErrProtocolType, "protocol type %s", object.ProtocolType)
	}
	if ch.ProtocolType != old.ProtocolType {
		return nil, errors.Wrap(apis.ErrImmutable, "protocolType")
	}
	if errs := runtime.ValidateChannel(ch); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	ch.ObjectMeta = runtime.ObjectMeta{Name: ch.GetName(), ID: id, Version: version, ModTime: time.Now()}
	if _, err = m.store.Update(ch, version); err != nil {
		klog.V(2).InfoS("Failed to update channel", "channelId", id, "err", err)
		return nil, err
	}

	d.StopAutoRead()
	if err = d.Reconfigure(ctx, ch); err != nil {
		klog.V(2).InfoS("Failed to reconfigure channel", "channelId", id, "err", err)
	}
	switch {
	case ch.Enabled && d.Status() != runtime.Running:
		err = d.Start(ctx)
	case !ch.Enabled:
		err = d.Stop(ctx)
	case ch.AutoRead:
		d.StartAutoRead()
	}
	if err != nil {
		klog.V(2).InfoS("Failed to apply channel state", "channelId", id, "err", err)
	}
	klog.V(3).InfoS("Updated channel", "channelId", id)
	return d.Info(), nil
}

func (m *Manager) ListChannels(filter *runtime.ChannelFilter) []*runtime.ChannelInfo {
	predicates := runtime.ParseChannelFilter(filter)
	// descend
	byModTime := func(c1, c2 *runtime.ChannelInfo) bool { return c1.GetModTime().After(c2.GetModTime()) }
	sorter := runtime.By[*runtime.ChannelInfo](byModTime)

	infos := make([]*runtime.ChannelInfo, 0)
	m.devices.Range(func(key, value interface{}) bool {
		d := value.(*Device)
		if runtime.Match(d.Channel(), predicates) {
			infos = sorter.Insert(infos, d.Info())
		}
		return true
	})
	return infos
}

func (m *Manager) GetDevice(id string) (*Device, error) {
	v, ok := m.devices.Load(id)
	if !ok {
		return nil, errors.Wrapf(constant.ErrChannelNotFound, "id %s", id)
	}
	return v.(*Device), nil
}

// Action runs a start, stop or auto read switch. Auto read switches are persisted so
// the channel polls again after a restart of the process.
func (m *Manager) Action(ctx context.Context, id string, action runtime.ChannelAction) error {
	d, err := m.GetDevice(id)
	if err != nil {
		return err
	}
	klog.V(3).InfoS("Channel action", "channelId", id, "action", action)
	switch action {
	case runtime.Start:
		return d.Start(ctx)
	case runtime.Stop:
		return d.Stop(ctx)
	case runtime.Restart:
		if err = d.Stop(ctx); err != nil {
			klog.V(2).InfoS("Failed to stop channel", "channelId", id, "err", err)
		}
		return d.Start(ctx)
	case runtime.StartAutoRead:
		if err = m.persistAutoRead(d, true); err != nil {
			return err
		}
		d.StartAutoRead()
		return nil
	case runtime.StopAutoRead:
		d.StopAutoRead()
		return m.persistAutoRead(d, false)
	default:
		return errors.Errorf("unknown channel action %d", action)
	}
}

func (m *Manager) persistAutoRead(d *Device, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := d.Channel()
	if ch.AutoRead == enabled {
		return nil
	}
	ch.AutoRead = enabled
	if _, err := m.store.Update(ch, ch.GetVersion()); err != nil {
		klog.V(2).InfoS("Failed to persist auto read", "channelId", ch.GetID(), "err", err)
		return err
	}
	d.SetChannel(ch)
	return nil
}

func (m *Manager) topic(ch *runtime.Channel) string {
	if len(ch.Topic) > 0 {
		return ch.Topic
	}
	return fmt.Sprintf("data/%s/v1/%s", m.stationID, ch.GetID())
}

// publish forwards one poll pass to the broker, nothing is sent while disconnected.
func (m *Manager) publish(ch *runtime.Channel, values []runtime.PointData) {
	if m.mqttClient == nil || !m.mqttClient.IsConnectionOpen() {
		return
	}
	topic := m.topic(ch)
	publishData := runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
		Timestamp: time.Now().UTC().Format(timestampLayout),
		Values:    values,
	}}}}
	marshal, err := json.Marshal(publishData)
	if err != nil {
		klog.V(2).InfoS("Failed to marshal publish data", "channelId", ch.GetID(), "err", err)
		return
	}
	token := m.mqttClient.Publish(topic, m.qos, false, marshal)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		metrics.Publish.WithLabelValues(metrics.ResultSuccess).Inc()
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic, "data", publishData)
	} else {
		metrics.Publish.WithLabelValues(metrics.ResultFailure).Inc()
		klog.V(2).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
	}
}

// Shutdown stops every channel, then runs the closers in reverse registration order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.devices.Range(func(key, value interface{}) bool {
		if err := value.(*Device).Close(ctx); err != nil {
			klog.V(2).InfoS("Failed to stop channel", "channelId", key, "err", err)
		}
		return true
	})

	if m.mqttClient != nil {
		m.mqttClient.Disconnect(2000)
	}
	var errs []string
	for i := len(m.closers); i > 0; i-- {
		lc := m.closers[i-1]
		if err := lc.Closer(ctx); err != nil {
			klog.V(2).InfoS("Failed to stopped Dependencies service", "service", lc.Label)
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shutdown server: [%s]", strings.Join(errs, ","))
	}
	return nil
}
