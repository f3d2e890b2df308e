package modbus

import (
	"strconv"

	"emssimulate/pkg/codec"
	"emssimulate/pkg/point"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

// DefaultFunctionCode used when a point record carries none.
var DefaultFunctionCode = map[constant.PointKind]uint8{
	constant.Measurement: 3,
	constant.Status:      1,
	constant.Control:     5,
	constant.Setpoint:    3,
}

// FunctionCodeOf effective function code of p, 10 is treated as 6.
func FunctionCodeOf(p point.Point) uint8 {
	fc := p.Base().FunctionCode()
	switch fc {
	case 0:
		return DefaultFunctionCode[p.Kind()]
	case 10:
		return 6
	default:
		return fc
	}
}

func registerAddress(p point.Point) (int, error) {
	addr, err := strconv.Atoi(p.Base().NativeAddress())
	if err != nil {
		return 0, errors.Wrapf(constant.ErrAddressFormat, "point %s", p.Code())
	}
	return addr, nil
}

// bitPoint status and control points read a single bit of a register.
func bitPoint(p point.Point) bool {
	return p.Kind() == constant.Status || p.Kind() == constant.Control
}

func bitOffset(p point.Point) (uint, error) {
	offset := point.BitOffsetOf(p)
	if offset > 15 {
		return 0, errors.Errorf("point %s bit offset %d out of register", p.Code(), offset)
	}
	return uint(offset), nil
}

// readBank returns the raw value of p held in bank.
func readBank(bank *Bank, p point.Point) (float64, error) {
	table, err := TableOf(FunctionCodeOf(p))
	if err != nil {
		return 0, err
	}
	addr, err := registerAddress(p)
	if err != nil {
		return 0, err
	}

	if table.Bits() {
		bits, err := bank.ReadBits(table, addr, 1)
		if err != nil {
			return 0, err
		}
		return boolToFloat(bits[0]), nil
	}

	if bitPoint(p) {
		offset, err := bitOffset(p)
		if err != nil {
			return 0, err
		}
		regs, err := bank.ReadRegisters(table, addr, 1)
		if err != nil {
			return 0, err
		}
		return float64((regs[0] >> offset) & 1), nil
	}

	format := p.Base().Format()
	regs, err := bank.ReadRegisters(table, addr, format.RegisterCount)
	if err != nil {
		return 0, err
	}
	return codec.DecodeFloat64(format, codec.RegistersToBytes(regs))
}

// writeBank stores raw into bank, encoded with the point's decode format.
func writeBank(bank *Bank, p point.Point, raw float64) error {
	table, err := TableOf(FunctionCodeOf(p))
	if err != nil {
		return err
	}
	addr, err := registerAddress(p)
	if err != nil {
		return err
	}

	if table.Bits() {
		return bank.WriteBits(table, addr, []bool{raw != 0})
	}

	if bitPoint(p) {
		offset, err := bitOffset(p)
		if err != nil {
			return err
		}
		return bank.UpdateRegister(table, addr, func(v uint16) uint16 {
			return setBit(v, offset, raw != 0)
		})
	}

	regs, err := codec.EncodeRegisters(p.Base().Format(), raw)
	if err != nil {
		return err
	}
	return bank.WriteRegisters(table, addr, regs)
}

func setBit(v uint16, offset uint, on bool) uint16 {
	if on {
		return v | 1<<offset
	}
	return v &^ (1 << offset)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
