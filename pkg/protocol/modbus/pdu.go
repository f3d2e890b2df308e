package modbus

import (
	"emssimulate/pkg/utils/binutil"
	"github.com/pkg/errors"
)

const (
	ExceptionIllegalFunction byte = 0x01
	ExceptionIllegalAddress  byte = 0x02
	ExceptionIllegalValue    byte = 0x03
)

const (
	maxReadBits      = 2000
	maxReadRegisters = 125
	maxWriteBits     = 1968
	maxWriteRegs     = 123
)

func exception(fc byte, code byte) []byte {
	return []byte{fc | 0x80, code}
}

func exceptionOf(fc byte, err error) []byte {
	if errors.Is(err, ErrIllegalAddress) {
		return exception(fc, ExceptionIllegalAddress)
	}
	return exception(fc, ExceptionIllegalValue)
}

// HandlePDU executes one request PDU against bank and returns the response PDU.
func HandlePDU(bank *Bank, pdu []byte) []byte {
	if len(pdu) == 0 {
		return nil
	}
	fc := pdu[0]
	switch fc {
	case 1, 2, 3, 4, 5, 6:
		if len(pdu) != 5 {
			return exception(fc, ExceptionIllegalValue)
		}
	case 15, 16:
		if len(pdu) < 6 || len(pdu) != 6+int(pdu[5]) {
			return exception(fc, ExceptionIllegalValue)
		}
	default:
		return exception(fc, ExceptionIllegalFunction)
	}

	// 00 02  起始地址
	// 00 02  寄存器数量/线圈数量/写入值
	address := int(binutil.ParseUint16(pdu[1:]))
	quantity := int(binutil.ParseUint16(pdu[3:]))

	switch fc {
	case 1, 2:
		if quantity < 1 || quantity > maxReadBits {
			return exception(fc, ExceptionIllegalValue)
		}
		table := Coils
		if fc == 2 {
			table = DiscreteInputs
		}
		bits, err := bank.ReadBits(table, address, quantity)
		if err != nil {
			return exceptionOf(fc, err)
		}
		data := binutil.ShrinkBool(binutil.BoolToByte(bits))
		return append([]byte{fc, byte(len(data))}, data...)
	case 3, 4:
		if quantity < 1 || quantity > maxReadRegisters {
			return exception(fc, ExceptionIllegalValue)
		}
		table := HoldingRegisters
		if fc == 4 {
			table = InputRegisters
		}
		regs, err := bank.ReadRegisters(table, address, quantity)
		if err != nil {
			return exceptionOf(fc, err)
		}
		resp := make([]byte, 2+2*len(regs))
		resp[0] = fc
		resp[1] = byte(2 * len(regs))
		for i, r := range regs {
			binutil.WriteUint16(resp[2+2*i:], r)
		}
		return resp
	case 5:
		// FF 00 置位, 00 00 复位
		if quantity != 0xFF00 && quantity != 0x0000 {
			return exception(fc, ExceptionIllegalValue)
		}
		if err := bank.WriteBits(Coils, address, []bool{quantity == 0xFF00}); err != nil {
			return exceptionOf(fc, err)
		}
		return binutil.Dup(pdu)
	case 6:
		if err := bank.WriteRegisters(HoldingRegisters, address, []uint16{uint16(quantity)}); err != nil {
			return exceptionOf(fc, err)
		}
		return binutil.Dup(pdu)
	case 15:
		byteCount := int(pdu[5])
		if quantity < 1 || quantity > maxWriteBits || byteCount != (quantity+7)/8 {
			return exception(fc, ExceptionIllegalValue)
		}
		bits := binutil.ByteToBool(binutil.ExpandBool(pdu[6:], byteCount)[:quantity])
		if err := bank.WriteBits(Coils, address, bits); err != nil {
			return exceptionOf(fc, err)
		}
		return binutil.Dup(pdu[:5])
	default:
		byteCount := int(pdu[5])
		if quantity < 1 || quantity > maxWriteRegs || byteCount != 2*quantity {
			return exception(fc, ExceptionIllegalValue)
		}
		regs := make([]uint16, quantity)
		for i := range regs {
			regs[i] = binutil.ParseUint16(pdu[6+2*i:])
		}
		if err := bank.WriteRegisters(HoldingRegisters, address, regs); err != nil {
			return exceptionOf(fc, err)
		}
		return binutil.Dup(pdu[:5])
	}
}
