package transport

import (
	"strings"
	"time"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

var ParityToParity = map[constant.Parity]serial.Parity{
	constant.NoParity:    serial.NoParity,
	constant.OddParity:   serial.OddParity,
	constant.EvenParity:  serial.EvenParity,
	constant.MarkParity:  serial.MarkParity,
	constant.SpaceParity: serial.SpaceParity,
}

var StopBitsToStopBits = map[constant.StopBits]serial.StopBits{
	constant.OneStopBit:           serial.OneStopBit,
	constant.OnePointFiveStopBits: serial.OnePointFiveStopBits,
	constant.TwoStopBits:          serial.TwoStopBits,
}

// SerialOptions serial line parameters as found in channel options.
type SerialOptions struct {
	SerialPort string        `json:"serialPort"`
	BaudRate   int           `json:"baudRate"`
	DataBits   int           `json:"dataBits"`
	StopBits   string        `json:"stopBits"`
	Parity     string        `json:"parity"`
	Timeout    time.Duration `json:"serialTimeout"`
}

// DefaultSerialOptions 9600 8E1
func DefaultSerialOptions() SerialOptions {
	return SerialOptions{
		SerialPort: "/dev/ttyS0",
		BaudRate:   9600,
		DataBits:   8,
		StopBits:   "1",
		Parity:     "E",
		Timeout:    time.Second,
	}
}

func (o *SerialOptions) ParsedParity() (constant.Parity, error) {
	p, ok := constant.StringToParity[strings.TrimSpace(o.Parity)]
	if !ok {
		return 0, errors.Errorf("unknown parity %q", o.Parity)
	}
	return p, nil
}

func (o *SerialOptions) ParsedStopBits() (constant.StopBits, error) {
	sb, ok := constant.StringToStopBits[strings.TrimSpace(o.StopBits)]
	if !ok {
		return 0, errors.Errorf("unknown stop bits %q", o.StopBits)
	}
	return sb, nil
}

// Mode converts the options into a go.bug.st/serial mode.
func (o *SerialOptions) Mode() (*serial.Mode, error) {
	parity, err := o.ParsedParity()
	if err != nil {
		return nil, err
	}
	stopBits, err := o.ParsedStopBits()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
		Parity:   ParityToParity[parity],
		StopBits: StopBitsToStopBits[stopBits],
	}, nil
}

// OpenSerial opens the configured port.
func OpenSerial(o *SerialOptions) (serial.Port, error) {
	mode, err := o.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(o.SerialPort, mode)
	if err != nil {
		return nil, errors.Wrapf(constant.ErrConnection, "open %s: %v", o.SerialPort, err)
	}
	return port, nil
}
