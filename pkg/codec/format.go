package codec

import (
	"strings"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DecodeFormat binary encoding of a register value. Formats are immutable and shared.
type DecodeFormat struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	RegisterCount int    `json:"registerCount"` // 占用寄存器数量 1 2 4
	Signed        bool   `json:"signed"`
	Float         bool   `json:"float"`
	BigEndian     bool   `json:"bigEndian"`
	WordSwap      bool   `json:"wordSwap"` // 字交换
	bits          int
}

var (
	Char8BE          = newFormat("0x10", "CHAR_8_BE", "8-bit unsigned char", 1, false, false, true, false, 8)
	Char8BESigned    = newFormat("0x11", "CHAR_8_BE_SIGNED", "8-bit signed char", 1, true, false, true, false, 8)
	Uint16BE         = newFormat("0x20", "UINT16_BE", "16-bit unsigned, big-endian", 1, false, false, true, false, 16)
	Int16BE          = newFormat("0x21", "INT16_BE", "16-bit signed, big-endian", 1, true, false, true, false, 16)
	Uint16BEByteSwap = newFormat("0x22", "UINT16_BE_BYTE_SWAP", "16-bit unsigned, big-endian byte swap", 1, false, false, true, true, 16)
	Uint16BESwap     = newFormat("0xB0", "UINT16_BE_SWAP", "16-bit unsigned, big-endian swap", 1, false, false, true, true, 16)
	Int16BESwap      = newFormat("0xB1", "INT16_BE_SWAP", "16-bit signed, big-endian swap", 1, true, false, true, true, 16)
	Uint16LE         = newFormat("0xC0", "UINT16_LE", "16-bit unsigned, little-endian", 1, false, false, false, false, 16)
	Int16LE          = newFormat("0xC1", "INT16_LE", "16-bit signed, little-endian", 1, true, false, false, false, 16)
	Uint32BE         = newFormat("0x40", "UINT32_BE", "32-bit unsigned, big-endian", 2, false, false, true, false, 32)
	Int32BE          = newFormat("0x41", "INT32_BE", "32-bit signed, big-endian", 2, true, false, true, false, 32)
	FloatBE          = newFormat("0x42", "FLOAT_BE", "32-bit float, big-endian", 2, false, true, true, false, 32)
	Uint32BESwap     = newFormat("0x43", "UINT32_BE_SWAP", "32-bit unsigned, big-endian word swap", 2, false, false, true, true, 32)
	Int32BESwap      = newFormat("0x44", "INT32_BE_SWAP", "32-bit signed, big-endian word swap", 2, true, false, true, true, 32)
	FloatBESwap      = newFormat("0x45", "FLOAT_BE_SWAP", "32-bit float, big-endian word swap", 2, false, true, true, true, 32)
	Uint32LE         = newFormat("0xD0", "UINT32_LE", "32-bit unsigned, little-endian", 2, false, false, false, false, 32)
	Int32LE          = newFormat("0xD1", "INT32_LE", "32-bit signed, little-endian", 2, true, false, false, false, 32)
	FloatLE          = newFormat("0xD2", "FLOAT_LE", "32-bit float, little-endian", 2, false, true, false, false, 32)
	FloatLESwap      = newFormat("0xD3", "FLOAT_LE_SWAP", "32-bit float, little-endian word swap", 2, false, true, false, true, 32)
	Uint32LESwap     = newFormat("0xD4", "UINT32_LE_SWAP", "32-bit unsigned, little-endian word swap", 2, false, false, false, true, 32)
	Int32LESwap      = newFormat("0xD5", "INT32_LE_SWAP", "32-bit signed, little-endian word swap", 2, true, false, false, true, 32)
	Uint64BE         = newFormat("0x60", "UINT64_BE", "64-bit unsigned, big-endian", 4, false, false, true, false, 64)
	Int64BE          = newFormat("0x61", "INT64_BE", "64-bit signed, big-endian", 4, true, false, true, false, 64)
	DoubleBE         = newFormat("0x62", "DOUBLE_BE", "64-bit float, big-endian", 4, false, true, true, false, 64)
	Uint64LE         = newFormat("0xE0", "UINT64_LE", "64-bit unsigned, little-endian", 4, false, false, false, false, 64)
	Int64LE          = newFormat("0xE1", "INT64_LE", "64-bit signed, little-endian", 4, true, false, false, false, 64)
	DoubleLE         = newFormat("0xE2", "DOUBLE_LE", "64-bit float, little-endian", 4, false, true, false, false, 64)
)

// DefaultFormat used for unknown decode codes.
var DefaultFormat = Int32BE

var catalog = []*DecodeFormat{
	Char8BE, Char8BESigned,
	Uint16BE, Int16BE, Uint16BEByteSwap, Uint16BESwap, Int16BESwap, Uint16LE, Int16LE,
	Uint32BE, Int32BE, FloatBE, Uint32BESwap, Int32BESwap, FloatBESwap,
	Uint32LE, Int32LE, FloatLE, FloatLESwap, Uint32LESwap, Int32LESwap,
	Uint64BE, Int64BE, DoubleBE, Uint64LE, Int64LE, DoubleLE,
}

var codeToFormat = func() map[string]*DecodeFormat {
	m := make(map[string]*DecodeFormat, len(catalog))
	for _, f := range catalog {
		m[f.Code] = f
	}
	return m
}()

func newFormat(code, name, desc string, registers int, signed, float, bigEndian, wordSwap bool, bits int) *DecodeFormat {
	return &DecodeFormat{
		Code:          code,
		Name:          name,
		Description:   desc,
		RegisterCount: registers,
		Signed:        signed,
		Float:         float,
		BigEndian:     bigEndian,
		WordSwap:      wordSwap,
		bits:          bits,
	}
}

// Bits value width, 8 for the char formats which still occupy a whole register.
func (f *DecodeFormat) Bits() int {
	return f.bits
}

func (f *DecodeFormat) ByteLength() int {
	return f.RegisterCount * 2
}

// MemoryLayout byte order of the value on the wire. Word swap needs two words, single
// register formats are AB (ABCD) or BA (DCBA) by endianness alone.
func (f *DecodeFormat) MemoryLayout() constant.MemoryLayout {
	if f.RegisterCount == 1 {
		if f.BigEndian {
			return constant.ABCD
		}
		return constant.DCBA
	}
	switch {
	case f.BigEndian && !f.WordSwap:
		return constant.ABCD
	case f.BigEndian && f.WordSwap:
		return constant.CDAB
	case !f.BigEndian && !f.WordSwap:
		return constant.DCBA
	default:
		return constant.BADC
	}
}

func (f *DecodeFormat) DataType() constant.DataType {
	switch {
	case f.Float && f.bits == 32:
		return constant.FLOAT32
	case f.Float:
		return constant.FLOAT64
	}
	switch f.bits {
	case 8:
		if f.Signed {
			return constant.INT8
		}
		return constant.UINT8
	case 16:
		if f.Signed {
			return constant.INT16
		}
		return constant.UINT16
	case 32:
		if f.Signed {
			return constant.INT32
		}
		return constant.UINT32
	default:
		if f.Signed {
			return constant.INT64
		}
		return constant.UINT64
	}
}

func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) > 2 && (code[:2] == "0x" || code[:2] == "0X") {
		return "0x" + strings.ToUpper(code[2:])
	}
	return "0x" + strings.ToUpper(code)
}

// Find returns the format registered for code. Unknown codes yield the default
// format together with ErrUnsupportedDecodeFormat.
func Find(code string) (*DecodeFormat, error) {
	if f, ok := codeToFormat[normalizeCode(code)]; ok {
		return f, nil
	}
	return DefaultFormat, errors.Wrapf(constant.ErrUnsupportedDecodeFormat, "decode %q", code)
}

// Lookup like Find, but only logs unknown codes.
func Lookup(code string) *DecodeFormat {
	f, err := Find(code)
	if err != nil && len(code) > 0 {
		klog.V(2).InfoS("Unsupported decode format, fall back to default", "decode", code, "default", DefaultFormat.Code)
	}
	return f
}

// Formats returns the catalog in declaration order.
func Formats() []*DecodeFormat {
	ret := make([]*DecodeFormat, len(catalog))
	copy(ret, catalog)
	return ret
}
