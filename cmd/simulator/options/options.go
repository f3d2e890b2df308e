package options

import (
	"context"
	"time"

	"emssimulate/cmd/simulator/config"
	"emssimulate/pkg/channel"
	"emssimulate/pkg/generic"
	baseoptions "emssimulate/pkg/generic/options"
	"emssimulate/pkg/station"
	"emssimulate/pkg/storage"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

type StoreOptions struct {
	Path   string `json:"path"`
	Driver string `json:"driver"` // fs or sqlite
	DSN    string `json:"dsn"`
}

type MqttOptions struct {
	// Broker 为空时不上送采集数据
	Broker   string `json:"broker"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	Password string `json:"password"`
	QoS      int    `json:"qos"`
}

type ChannelOptions struct {
	PollInterval    time.Duration `json:"poll-interval"`
	BridgeWorkers   int           `json:"bridge-workers"`
	HandoffTimeout  time.Duration `json:"handoff-timeout"`
	CaptureCapacity int           `json:"capture-capacity"`
}

type Options struct {
	Port     string         `json:"port"`
	Wait     time.Duration  `json:"graceful-timeout"`
	CertFile string         `json:"cert-file"`
	KeyFile  string         `json:"key-file"`
	Store    StoreOptions   `json:"store"`
	Mqtt     MqttOptions    `json:"mqtt"`
	Channel  ChannelOptions `json:"channel"`
	baseoptions.BaseOptions
}

const (
	_defaultPort            = "32200"
	_defaultWait            = 15 * time.Second
	_defaultStorePath       = "./data"
	_defaultClientID        = "ems-simulator"
	_defaultPollInterval    = time.Second
	_defaultBridgeWorkers   = 4
	_defaultHandoffTimeout  = 2 * time.Second
	_defaultCaptureCapacity = 100
	_connectTimeout         = 5 * time.Second
)

func NewDefaultOptions() *Options {
	return &Options{
		Port: _defaultPort,
		Wait: _defaultWait,
		Store: StoreOptions{
			Path:   _defaultStorePath,
			Driver: storage.DriverFs,
		},
		Mqtt: MqttOptions{
			ClientID: _defaultClientID,
			QoS:      1,
		},
		Channel: ChannelOptions{
			PollInterval:    _defaultPollInterval,
			BridgeWorkers:   _defaultBridgeWorkers,
			HandoffTimeout:  _defaultHandoffTimeout,
			CaptureCapacity: _defaultCaptureCapacity,
		},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "File containing the x509 certificate for HTTPS, serve plain HTTP when empty")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "File containing the x509 private key matching --cert-file")

	fs.StringVar(&o.Store.Path, "store-path", o.Store.Path, "Directory holding the station, channel and point data")
	fs.StringVar(&o.Store.Driver, "point-store", o.Store.Driver, "Point store driver, one of fs or sqlite")
	fs.StringVar(&o.Store.DSN, "point-dsn", o.Store.DSN, "Data source name of the sqlite point store, a database file under --store-path when empty")

	fs.StringVar(&o.Mqtt.Broker, "mqtt-broker", o.Mqtt.Broker, "MQTT broker that receives polled values, e.g. tcp://127.0.0.1:1883. Nothing is published when empty")
	fs.StringVar(&o.Mqtt.ClientID, "mqtt-client-id", o.Mqtt.ClientID, "MQTT client id")
	fs.StringVar(&o.Mqtt.Username, "mqtt-username", o.Mqtt.Username, "MQTT username")
	fs.StringVar(&o.Mqtt.Password, "mqtt-password", o.Mqtt.Password, "MQTT password")
	fs.IntVar(&o.Mqtt.QoS, "mqtt-qos", o.Mqtt.QoS, "QoS of published values, 0, 1 or 2")

	fs.DurationVar(&o.Channel.PollInterval, "poll-interval", o.Channel.PollInterval, "Interval of channel auto read")
	fs.IntVar(&o.Channel.BridgeWorkers, "bridge-workers", o.Channel.BridgeWorkers, "Workers serving blocking protocol handlers per channel")
	fs.DurationVar(&o.Channel.HandoffTimeout, "handoff-timeout", o.Channel.HandoffTimeout, "How long a request waits for a free bridge worker")
	fs.IntVar(&o.Channel.CaptureCapacity, "capture-capacity", o.Channel.CaptureCapacity, "Frames kept per channel for the message view")
}

func (o *Options) Config(ctx context.Context) (*config.Config, error) {
	c := &config.Config{
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	}

	stationMgr, err := station.NewStationManager(o.Store.Path)
	if err != nil {
		return nil, err
	}
	if err = stationMgr.Init(); err != nil {
		return nil, err
	}
	c.StationMgr = stationMgr

	store, err := generic.NewStore(o.Store.Path, storage.StoreGroupToString[storage.StoreGroupChannel], storage.Channels)
	if err != nil {
		return nil, err
	}
	points, err := storage.NewPointStore(o.Store.Driver, o.Store.Path, o.Store.DSN)
	if err != nil {
		return nil, err
	}

	opts := []channel.Option{
		channel.WithDeviceOptions(channel.DeviceOptions{
			PollInterval:    o.Channel.PollInterval,
			BridgeWorkers:   o.Channel.BridgeWorkers,
			HandoffTimeout:  o.Channel.HandoffTimeout,
			CaptureCapacity: o.Channel.CaptureCapacity,
		}),
		channel.WithCloser("points", func(ctx context.Context) error {
			return points.Close()
		}),
	}
	if len(o.Mqtt.Broker) > 0 {
		opts = append(opts, channel.WithMqttClient(o.newMqttClient(), byte(o.Mqtt.QoS)))
	}

	channelMgr := channel.NewManager(store, points, stationMgr.GetStationMeta().GetID(), opts...)
	channelMgr.Init(ctx)
	c.ChannelMgr = channelMgr

	return c, nil
}

// newMqttClient 连接在后台重试, 断开期间的数据直接丢弃
func (o *Options) newMqttClient() mqtt.Client {
	opt := mqtt.NewClientOptions().
		AddBroker(o.Mqtt.Broker).
		SetClientID(o.Mqtt.ClientID).
		SetUsername(o.Mqtt.Username).
		SetPassword(o.Mqtt.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(_connectTimeout).
		SetOnConnectHandler(func(client mqtt.Client) {
			klog.V(1).InfoS("Connected to MQTT broker", "broker", o.Mqtt.Broker)
		}).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			klog.V(1).InfoS("Lost connection to MQTT broker", "broker", o.Mqtt.Broker, "err", err)
		})
	client := mqtt.NewClient(opt)
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			klog.V(1).InfoS("Failed to connect MQTT broker", "broker", o.Mqtt.Broker, "err", err)
		}
	}()
	return client
}
