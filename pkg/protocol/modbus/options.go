package modbus

import (
	"net"
	"strconv"
	"time"

	"emssimulate/pkg/protocol"
	"emssimulate/pkg/protocol/transport"
	"github.com/pkg/errors"
)

// ServerOptions options of the slave side handlers.
type ServerOptions struct {
	Host        string        `json:"host"`
	Port        int           `json:"port"`
	Slaves      []int         `json:"slaves"`
	MaxClients  uint          `json:"maxClients"`
	IdleTimeout time.Duration `json:"idleTimeout"`

	transport.SerialOptions `json:",squash"`
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Host:          "0.0.0.0",
		Port:          502,
		Slaves:        []int{0, 1},
		MaxClients:    10,
		IdleTimeout:   30 * time.Second,
		SerialOptions: transport.DefaultSerialOptions(),
	}
}

func (o *ServerOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// ClientOptions options of the master side handlers.
type ClientOptions struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	Timeout time.Duration `json:"timeout"`

	transport.SerialOptions `json:",squash"`
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Host:          "127.0.0.1",
		Port:          502,
		Timeout:       2 * time.Second,
		SerialOptions: transport.DefaultSerialOptions(),
	}
}

func (o *ClientOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func decodeServerOptions(input map[string]interface{}) (*ServerOptions, error) {
	o := DefaultServerOptions()
	if err := protocol.DecodeOptions(input, o); err != nil {
		return nil, errors.Wrap(err, "decode modbus server options")
	}
	for _, s := range o.Slaves {
		if s < 0 || s > 255 {
			return nil, errors.Errorf("slave %d out of range 0-255", s)
		}
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, errors.Errorf("port %d out of range", o.Port)
	}
	return o, nil
}

func decodeClientOptions(input map[string]interface{}) (*ClientOptions, error) {
	o := DefaultClientOptions()
	if err := protocol.DecodeOptions(input, o); err != nil {
		return nil, errors.Wrap(err, "decode modbus client options")
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	return o, nil
}
