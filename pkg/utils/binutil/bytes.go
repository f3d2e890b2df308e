package binutil

import "encoding/binary"

// 字节序命名沿用 A 为最高字节: ABCD 大端, BADC 大端字内交换, CDAB 小端字内交换, DCBA 小端.

// swapped copies the first n bytes of buf with every byte pair exchanged.
func swapped(buf []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		out[i], out[i+1] = buf[i+1], buf[i]
	}
	return out
}

func swapInPlace(buf []byte) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = buf[i+1], buf[i]
	}
}

// ParseUint16 one modbus register, always big endian on the wire
func ParseUint16(buf []byte) uint16 { return binary.BigEndian.Uint16(buf) }

func ParseUint16BigEndian(buf []byte) uint16 { return binary.BigEndian.Uint16(buf) }

// ParseUint16LittleEndian BA
func ParseUint16LittleEndian(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }

// ABCD
func ParseUint32BigEndian(buf []byte) uint32 { return binary.BigEndian.Uint32(buf) }

// BADC
func ParseUint32BigEndianByteSwap(buf []byte) uint32 {
	return binary.BigEndian.Uint32(swapped(buf, 4))
}

// DCBA
func ParseUint32LittleEndian(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// CDAB
func ParseUint32LittleEndianByteSwap(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(swapped(buf, 4))
}

// ABCD EFGH
func ParseUint64BigEndian(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// BADC FEHG
func ParseUint64BigEndianByteData(b []byte) uint64 {
	return binary.BigEndian.Uint64(swapped(b, 8))
}

// HGFE DCBA
func ParseUint64LittleEndian(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// GHEF CDAB
func ParseUint64LittleEndianByteSwap(b []byte) uint64 {
	return binary.LittleEndian.Uint64(swapped(b, 8))
}

// WriteUint16 编码
func WriteUint16(buf []byte, value uint16) { binary.BigEndian.PutUint16(buf, value) }

// WriteUint16LittleEndian 编码
func WriteUint16LittleEndian(buf []byte, value uint16) { binary.LittleEndian.PutUint16(buf, value) }

// WriteUint32 编码
func WriteUint32(buf []byte, value uint32) { binary.BigEndian.PutUint32(buf, value) }

// WriteUint32LittleEndian 编码
func WriteUint32LittleEndian(buf []byte, value uint32) { binary.LittleEndian.PutUint32(buf, value) }

// WriteUint32BigEndianByteSwap BADC
func WriteUint32BigEndianByteSwap(buf []byte, value uint32) {
	binary.BigEndian.PutUint32(buf, value)
	swapInPlace(buf[:4])
}

// WriteUint32LittleEndianByteSwap CDAB
func WriteUint32LittleEndianByteSwap(buf []byte, value uint32) {
	binary.LittleEndian.PutUint32(buf, value)
	swapInPlace(buf[:4])
}

// WriteUint64 编码
func WriteUint64(buf []byte, value uint64) { binary.BigEndian.PutUint64(buf, value) }

// WriteUint64LittleEndian 编码
func WriteUint64LittleEndian(buf []byte, value uint64) { binary.LittleEndian.PutUint64(buf, value) }

// WriteUint64BigEndianByteSwap BADC FEHG
func WriteUint64BigEndianByteSwap(buf []byte, value uint64) {
	binary.BigEndian.PutUint64(buf, value)
	swapInPlace(buf[:8])
}

// WriteUint64LittleEndianByteSwap GHEF CDAB
func WriteUint64LittleEndianByteSwap(buf []byte, value uint64) {
	binary.LittleEndian.PutUint64(buf, value)
	swapInPlace(buf[:8])
}

// Dup 复制
func Dup(buf []byte) []byte {
	return append([]byte(nil), buf...)
}

// BoolToByte one byte per bit, 1 for true
func BoolToByte(buf []bool) []byte {
	r := make([]byte, len(buf))
	for i, v := range buf {
		if v {
			r[i] = 1
		}
	}
	return r
}

func ByteToBool(buf []byte) []bool {
	r := make([]bool, len(buf))
	for i, v := range buf {
		r[i] = v > 0
	}
	return r
}

// ShrinkBool packs one byte per bit into the modbus coil layout, lowest bit first.
func ShrinkBool(buf []byte) []byte {
	b := make([]byte, (len(buf)+7)/8)
	for i, v := range buf {
		if v > 0 {
			b[i/8] |= 1 << (i % 8)
		}
	}
	return b
}

// ExpandBool unpacks the first count bytes of buf, eight bits each.
func ExpandBool(buf []byte, count int) []byte {
	if count > len(buf) {
		count = len(buf)
	}
	b := make([]byte, count*8)
	for i := range b {
		if buf[i/8]&(1<<(i%8)) > 0 {
			b[i] = 1
		}
	}
	return b
}
