package codec

import (
	"math"

	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/utils/binutil"
	"github.com/pkg/errors"
)

// Decode converts the wire bytes of f.RegisterCount registers into the concrete Go
// type of the format: uint8, int8, uint16, int16, uint32, int32, float32, uint64,
// int64 or float64.
func Decode(f *DecodeFormat, buf []byte) (interface{}, error) {
	if len(buf) != f.ByteLength() {
		return nil, errors.Wrapf(constant.ErrMalformedBuffer, "%s needs %d bytes, got %d", f.Name, f.ByteLength(), len(buf))
	}
	raw, err := readRaw(f, buf)
	if err != nil {
		return nil, err
	}

	if f.Float {
		if f.bits == 32 {
			return math.Float32frombits(uint32(raw)), nil
		}
		return math.Float64frombits(raw), nil
	}

	switch f.bits {
	case 8:
		if f.Signed {
			return int8(uint8(raw)), nil
		}
		return uint8(raw), nil
	case 16:
		if f.Signed {
			return int16(uint16(raw)), nil
		}
		return uint16(raw), nil
	case 32:
		if f.Signed {
			return int32(uint32(raw)), nil
		}
		return uint32(raw), nil
	default:
		if f.Signed {
			return int64(raw), nil
		}
		return raw, nil
	}
}

// DecodeFloat64 decodes buf and widens the result. Integers beyond 2^53 lose precision.
func DecodeFloat64(f *DecodeFormat, buf []byte) (float64, error) {
	v, err := Decode(f, buf)
	if err != nil {
		return 0, err
	}
	return ToFloat64(v)
}

// Encode converts value into the wire bytes of f. Floats written to integer formats
// are rounded to the nearest integer, values that do not fit return ErrValueOverflow.
func Encode(f *DecodeFormat, value interface{}) ([]byte, error) {
	n, err := toNumber(value)
	if err != nil {
		return nil, err
	}

	var raw uint64
	if f.Float {
		v := n.float()
		if f.bits == 32 {
			if !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) > math.MaxFloat32 {
				return nil, errors.Wrapf(constant.ErrValueOverflow, "%v does not fit %s", value, f.Name)
			}
			raw = uint64(math.Float32bits(float32(v)))
		} else {
			raw = math.Float64bits(v)
		}
	} else {
		raw, err = n.integer(f.bits, f.Signed)
		if err != nil {
			return nil, errors.Wrapf(err, "%v does not fit %s", value, f.Name)
		}
	}

	buf := make([]byte, f.ByteLength())
	writeRaw(f, buf, raw)
	return buf, nil
}

// DecodeRegisters decodes register values as read from a register bank.
func DecodeRegisters(f *DecodeFormat, registers []uint16) (interface{}, error) {
	return Decode(f, RegistersToBytes(registers))
}

// EncodeRegisters like Encode, returning one word per register.
func EncodeRegisters(f *DecodeFormat, value interface{}) ([]uint16, error) {
	buf, err := Encode(f, value)
	if err != nil {
		return nil, err
	}
	return BytesToRegisters(buf), nil
}

// RegistersToBytes flattens registers into big-endian wire words.
func RegistersToBytes(registers []uint16) []byte {
	buf := make([]byte, len(registers)*2)
	for i, r := range registers {
		binutil.WriteUint16(buf[i*2:], r)
	}
	return buf
}

func BytesToRegisters(buf []byte) []uint16 {
	registers := make([]uint16, len(buf)/2)
	for i := range registers {
		registers[i] = binutil.ParseUint16(buf[i*2:])
	}
	return registers
}

// readRaw char formats live in the low byte of their register. A high byte that is
// neither zero nor the sign extension of a signed char does not fit and is rejected.
func readRaw(f *DecodeFormat, buf []byte) (uint64, error) {
	layout := f.MemoryLayout()
	switch f.bits {
	case 8:
		high, low := buf[0], buf[1]
		if high != 0 && !(f.Signed && high == 0xFF && low&0x80 != 0) {
			return 0, errors.Wrapf(constant.ErrValueOverflow, "register % X does not fit %s", buf, f.Name)
		}
		return uint64(low), nil
	case 16:
		if layout == constant.ABCD {
			return uint64(binutil.ParseUint16BigEndian(buf)), nil
		}
		return uint64(binutil.ParseUint16LittleEndian(buf)), nil
	case 32:
		switch layout {
		case constant.ABCD:
			return uint64(binutil.ParseUint32BigEndian(buf)), nil
		case constant.CDAB:
			return uint64(binutil.ParseUint32LittleEndianByteSwap(buf)), nil
		case constant.BADC:
			return uint64(binutil.ParseUint32BigEndianByteSwap(buf)), nil
		default:
			return uint64(binutil.ParseUint32LittleEndian(buf)), nil
		}
	default:
		switch layout {
		case constant.ABCD:
			return binutil.ParseUint64BigEndian(buf), nil
		case constant.CDAB:
			return binutil.ParseUint64LittleEndianByteSwap(buf), nil
		case constant.BADC:
			return binutil.ParseUint64BigEndianByteData(buf), nil
		default:
			return binutil.ParseUint64LittleEndian(buf), nil
		}
	}
}

func writeRaw(f *DecodeFormat, buf []byte, raw uint64) {
	layout := f.MemoryLayout()
	switch f.bits {
	case 8:
		buf[0] = 0
		buf[1] = byte(raw)
	case 16:
		if layout == constant.ABCD {
			binutil.WriteUint16(buf, uint16(raw))
		} else {
			binutil.WriteUint16LittleEndian(buf, uint16(raw))
		}
	case 32:
		switch layout {
		case constant.ABCD:
			binutil.WriteUint32(buf, uint32(raw))
		case constant.CDAB:
			binutil.WriteUint32LittleEndianByteSwap(buf, uint32(raw))
		case constant.BADC:
			binutil.WriteUint32BigEndianByteSwap(buf, uint32(raw))
		default:
			binutil.WriteUint32LittleEndian(buf, uint32(raw))
		}
	default:
		switch layout {
		case constant.ABCD:
			binutil.WriteUint64(buf, raw)
		case constant.CDAB:
			binutil.WriteUint64LittleEndianByteSwap(buf, raw)
		case constant.BADC:
			binutil.WriteUint64BigEndianByteSwap(buf, raw)
		default:
			binutil.WriteUint64LittleEndian(buf, raw)
		}
	}
}
