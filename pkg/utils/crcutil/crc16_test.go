package crcutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCrc16sum(t *testing.T) {
	// 01 03 00 00 00 0A C5 CD
	message := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}
	assert.Equal(t, uint16(0xCDC5), Crc16(message))
	assert.Equal(t, uint16(0xC5CD), CheckCrc16sum(message))
}

func TestCrc16OfFrameWithCrcIsZero(t *testing.T) {
	frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}
	assert.Equal(t, uint16(0), Crc16(frame))
}
