package modbus

import (
	"testing"

	"emssimulate/pkg/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogTap(t *testing.T) {
	c := capture.New(10)
	logger := newLogger("tap", c)
	logger.Printf("modbus: sending % x", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x01})
	logger.Printf("modbus: received % x\n", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x02, 0x00, 0x2A})
	logger.Printf("modbus: closing connection due to idle timeout")

	msgs := c.Messages(0)
	require.Len(t, msgs, 2)
	assert.Equal(t, capture.TX, msgs[0].Direction)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, msgs[0].Raw)
	assert.Equal(t, capture.RX, msgs[1].Direction)
	assert.Equal(t, byte(0x2A), msgs[1].Raw[len(msgs[1].Raw)-1])
}

func TestMbap(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, mbap(1, readRequest(3, 0, 1)))
	assert.Equal(t, []byte{0x0F, 0x00, 0x01, 0x00, 0x0A, 0x02, 0x01, 0x02}, writeBitsRequest(1, []bool{true, false, false, false, false, false, false, false, false, true}))
	assert.Equal(t, []byte{0x05, 0x00, 0x01, 0xFF, 0x00}, writeBitsRequest(1, []bool{true}))
	assert.Equal(t, []byte{0x10, 0x00, 0x02, 0x00, 0x02, 0x04, 0x00, 0x01, 0x00, 0x02}, writeRegistersRequest(2, []uint16{1, 2}))
}
