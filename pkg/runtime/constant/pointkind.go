package constant

import (
	"encoding/json"
	"fmt"
)

type PointKind byte

const (
	Measurement PointKind = iota // 遥测
	Status                       // 遥信
	Control                      // 遥控
	Setpoint                     // 遥调
)

var PointKinds = []PointKind{Measurement, Status, Control, Setpoint}

var PointKindToString = map[PointKind]string{
	Measurement: "measurement",
	Status:      "status",
	Control:     "control",
	Setpoint:    "setpoint",
}

var StringToPointKind = map[string]PointKind{
	"measurement": Measurement,
	"status":      Status,
	"control":     Control,
	"setpoint":    Setpoint,
}

func (pk PointKind) String() string {
	return PointKindToString[pk]
}

// Numeric reports whether the kind carries scale, offset and limits.
func (pk PointKind) Numeric() bool {
	return pk == Measurement || pk == Setpoint
}

func (pk PointKind) MarshalJSON() ([]byte, error) {
	if s, ok := PointKindToString[pk]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown point kind %d", pk)
}

func (pk *PointKind) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToPointKind[s]
	if !ok {
		return fmt.Errorf("unknown point kind %s", s)
	}
	*pk = v
	return nil
}

type CommandType byte

const (
	SingleCommand CommandType = iota
	DoubleCommand
)

var CommandTypeToString = map[CommandType]string{
	SingleCommand: "single",
	DoubleCommand: "double",
}

var StringToCommandType = map[string]CommandType{
	"single": SingleCommand,
	"double": DoubleCommand,
}

func (ct CommandType) MarshalJSON() ([]byte, error) {
	if s, ok := CommandTypeToString[ct]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown command type %d", ct)
}

func (ct *CommandType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToCommandType[s]
	if !ok {
		return fmt.Errorf("unknown command type %s", s)
	}
	*ct = v
	return nil
}
