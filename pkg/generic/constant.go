package generic

import (
	"emssimulate/pkg/pointmanager"
	"emssimulate/pkg/protocol"
	"emssimulate/pkg/protocol/dlt645"
	"emssimulate/pkg/protocol/iec104"
	"emssimulate/pkg/protocol/modbus"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

type NewHandler func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler

func modbusServer(pt constant.ProtocolType) NewHandler {
	return func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return modbus.NewServer(pt, name, points, captureCapacity)
	}
}

func modbusClient(pt constant.ProtocolType) NewHandler {
	return func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return modbus.NewClient(pt, name, points, captureCapacity)
	}
}

var ProtocolTypeHandlerMap = map[constant.ProtocolType]NewHandler{
	constant.ModbusTcp:        modbusServer(constant.ModbusTcp),
	constant.ModbusRtu:        modbusServer(constant.ModbusRtu),
	constant.ModbusRtuOverTcp: modbusServer(constant.ModbusRtuOverTcp),
	constant.ModbusTcpClient:  modbusClient(constant.ModbusTcpClient),
	constant.ModbusRtuClient:  modbusClient(constant.ModbusRtuClient),
	constant.Iec104Server: func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return iec104.NewServer(name, points, captureCapacity)
	},
	constant.Iec104Client: func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return iec104.NewClient(name, points, captureCapacity)
	},
	constant.Dlt645Server: func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return dlt645.NewServer(name, points, captureCapacity)
	},
	constant.Dlt645Client: func(name string, points *pointmanager.PointManager, captureCapacity int) protocol.Handler {
		return dlt645.NewClient(name, points, captureCapacity)
	},
}

// CreateHandler builds the handler registered for pt.
func CreateHandler(pt constant.ProtocolType, name string, points *pointmanager.PointManager, captureCapacity int) (protocol.Handler, error) {
	newHandler, ok := ProtocolTypeHandlerMap[pt]
	if !ok {
		return nil, errors.Wrapf(constant.ErrProtocolType, "protocol type %d", pt)
	}
	return newHandler(name, points, captureCapacity), nil
}
