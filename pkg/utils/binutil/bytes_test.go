package binutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteUint32Layouts(t *testing.T) {
	buf := make([]byte, 4)

	WriteUint32BigEndianByteSwap(buf, 0x11223344)
	assert.Equal(t, []byte{0x22, 0x11, 0x44, 0x33}, buf)
	assert.Equal(t, uint32(0x11223344), ParseUint32BigEndianByteSwap(buf))

	WriteUint32LittleEndianByteSwap(buf, 0x11223344)
	assert.Equal(t, []byte{0x33, 0x44, 0x11, 0x22}, buf)
	assert.Equal(t, uint32(0x11223344), ParseUint32LittleEndianByteSwap(buf))
}

func TestWriteUint64Layouts(t *testing.T) {
	buf := make([]byte, 8)

	WriteUint64BigEndianByteSwap(buf, 0x0102030405060708)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}, buf)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64BigEndianByteData(buf))

	WriteUint64LittleEndianByteSwap(buf, 0x0102030405060708)
	assert.Equal(t, []byte{0x07, 0x08, 0x05, 0x06, 0x03, 0x04, 0x01, 0x02}, buf)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64LittleEndianByteSwap(buf))
}

func TestShrinkAndExpandBool(t *testing.T) {
	bits := []byte{1, 0, 1, 1, 0, 0, 0, 0, 1}
	packed := ShrinkBool(bits)
	assert.Equal(t, []byte{0x0D, 0x01}, packed)

	expanded := ExpandBool(packed, len(packed))
	assert.Equal(t, bits, expanded[:len(bits)])
}

func TestParseLayouts(t *testing.T) {
	abcd := []byte{0x11, 0x22, 0x33, 0x44}
	assert.Equal(t, uint32(0x11223344), ParseUint32BigEndian(abcd))
	assert.Equal(t, uint32(0x44332211), ParseUint32LittleEndian(abcd))
	assert.Equal(t, uint16(0x2211), ParseUint16LittleEndian(abcd))
	assert.Equal(t, uint16(0x1122), ParseUint16(abcd))
	// input untouched by the swapped views
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, abcd)

	buf := make([]byte, 8)
	WriteUint64(buf, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64BigEndian(buf))
	WriteUint64LittleEndian(buf, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64LittleEndian(buf))
	assert.Equal(t, buf, Dup(buf))
}
