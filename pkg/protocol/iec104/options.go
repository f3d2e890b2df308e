package iec104

import (
	"net"
	"strconv"
	"time"

	"emssimulate/pkg/protocol"
	"github.com/pkg/errors"
)

const DefaultPort = 2404

type Options struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	CommonAddress     uint16        `json:"commonAddress"`     // 公共地址
	ReportInterval    time.Duration `json:"reportInterval"`    // 突发上送周期, 0 关闭
	Timeout           time.Duration `json:"timeout"`           // 客户端建链超时
	ReconnectInterval time.Duration `json:"reconnectInterval"` // 客户端重连间隔
}

func DefaultServerOptions() *Options {
	return &Options{
		Host:              "0.0.0.0",
		Port:              DefaultPort,
		CommonAddress:     1,
		ReportInterval:    time.Second,
		Timeout:           5 * time.Second,
		ReconnectInterval: time.Second,
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

func decodeOptions(input map[string]interface{}, o *Options) (*Options, error) {
	if err := protocol.DecodeOptions(input, o); err != nil {
		return nil, errors.Wrap(err, "decode iec104 options")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return nil, errors.Errorf("port %d out of range", o.Port)
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = time.Second
	}
	return o, nil
}
