package constant

import (
	"encoding/json"
	"fmt"
)

type ProtocolType byte

const (
	ModbusTcp ProtocolType = iota
	ModbusRtu
	ModbusRtuOverTcp
	ModbusTcpClient
	ModbusRtuClient
	Iec104Server
	Iec104Client
	Dlt645Server
	Dlt645Client
)

var ProtocolTypeToString = map[ProtocolType]string{
	ModbusTcp:        "modbusTcp",
	ModbusRtu:        "modbusRtu",
	ModbusRtuOverTcp: "modbusRtuOverTcp",
	ModbusTcpClient:  "modbusTcpClient",
	ModbusRtuClient:  "modbusRtuClient",
	Iec104Server:     "iec104Server",
	Iec104Client:     "iec104Client",
	Dlt645Server:     "dlt645Server",
	Dlt645Client:     "dlt645Client",
}

var StringToProtocolType = map[string]ProtocolType{
	"modbusTcp":        ModbusTcp,
	"modbusRtu":        ModbusRtu,
	"modbusRtuOverTcp": ModbusRtuOverTcp,
	"modbusTcpClient":  ModbusTcpClient,
	"modbusRtuClient":  ModbusRtuClient,
	"iec104Server":     Iec104Server,
	"iec104Client":     Iec104Client,
	"dlt645Server":     Dlt645Server,
	"dlt645Client":     Dlt645Client,
}

// ProtocolFamily groups protocol types sharing an addressing scheme.
type ProtocolFamily byte

const (
	FamilyRegister ProtocolFamily = iota
	FamilyTelecontrol
	FamilyMeter
)

var ProtocolFamilyToString = map[ProtocolFamily]string{
	FamilyRegister:    "register",
	FamilyTelecontrol: "telecontrol",
	FamilyMeter:       "meter",
}

type Role byte

const (
	RoleServer Role = iota
	RoleClient
)

var RoleToString = map[Role]string{
	RoleServer: "server",
	RoleClient: "client",
}

func (pt ProtocolType) String() string {
	return ProtocolTypeToString[pt]
}

func (pt ProtocolType) Family() ProtocolFamily {
	switch pt {
	case Iec104Server, Iec104Client:
		return FamilyTelecontrol
	case Dlt645Server, Dlt645Client:
		return FamilyMeter
	default:
		return FamilyRegister
	}
}

func (pt ProtocolType) Role() Role {
	switch pt {
	case ModbusTcpClient, ModbusRtuClient, Iec104Client, Dlt645Client:
		return RoleClient
	default:
		return RoleServer
	}
}

func (pt ProtocolType) MarshalJSON() ([]byte, error) {
	if s, ok := ProtocolTypeToString[pt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown protocol type %d", pt)
}

func (pt *ProtocolType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToProtocolType[s]
	if !ok {
		return fmt.Errorf("unknown protocol type %s", s)
	}
	*pt = v
	return nil
}

func (f ProtocolFamily) String() string {
	return ProtocolFamilyToString[f]
}

func (r Role) String() string {
	return RoleToString[r]
}
