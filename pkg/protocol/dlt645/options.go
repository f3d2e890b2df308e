package dlt645

import (
	"net"
	"strconv"
	"time"

	"emssimulate/pkg/protocol"
	"emssimulate/pkg/protocol/transport"
	"github.com/pkg/errors"
)

const (
	DefaultPort         = 8899
	DefaultMeterAddress = "000000000000"
	DefaultDataLength   = 4
)

const (
	TransportTcp    = "tcp"
	TransportSerial = "serial"
)

type Options struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Transport    string        `json:"transport"` // tcp | serial
	MeterAddress string        `json:"meterAddress"`
	DataLength   int           `json:"dataLength"` // BCD 字节数
	Timeout      time.Duration `json:"timeout"`
	MaxClients   uint          `json:"maxClients"`
	IdleTimeout  time.Duration `json:"idleTimeout"`

	transport.SerialOptions `json:",squash"`
}

func DefaultServerOptions() *Options {
	return &Options{
		Host:          "0.0.0.0",
		Port:          DefaultPort,
		Transport:     TransportTcp,
		MeterAddress:  DefaultMeterAddress,
		DataLength:    DefaultDataLength,
		Timeout:       2 * time.Second,
		MaxClients:    10,
		IdleTimeout:   30 * time.Second,
		SerialOptions: transport.DefaultSerialOptions(),
	}
}

func DefaultClientOptions() *Options {
	o := DefaultServerOptions()
	o.Host = "127.0.0.1"
	return o
}

func (o *Options) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o *Options) Serial() bool {
	return o.Transport == TransportSerial
}

func decodeOptions(input map[string]interface{}, o *Options) (*Options, error) {
	if err := protocol.DecodeOptions(input, o); err != nil {
		return nil, errors.Wrap(err, "decode dlt645 options")
	}
	if o.Transport != TransportTcp && o.Transport != TransportSerial {
		return nil, errors.Errorf("unknown transport %q", o.Transport)
	}
	if !o.Serial() && (o.Port <= 0 || o.Port > 65535) {
		return nil, errors.Errorf("port %d out of range", o.Port)
	}
	if o.DataLength <= 0 || o.DataLength > 8 {
		return nil, errors.Errorf("data length %d out of range 1-8", o.DataLength)
	}
	if _, err := ParseAddress(o.MeterAddress); err != nil {
		return nil, err
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	return o, nil
}
