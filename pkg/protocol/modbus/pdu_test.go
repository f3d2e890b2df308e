package modbus

import (
	"testing"

	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlePDU(t *testing.T) {
	bank := NewBank()
	require.NoError(t, bank.WriteRegisters(HoldingRegisters, 0, []uint16{0x1234, 0x5678}))
	require.NoError(t, bank.WriteBits(Coils, 0, []bool{true, false, true}))

	tests := []struct {
		name    string
		request []byte
		want    []byte
	}{
		{"read holding", []byte{0x03, 0x00, 0x00, 0x00, 0x02}, []byte{0x03, 0x04, 0x12, 0x34, 0x56, 0x78}},
		{"read input", []byte{0x04, 0x00, 0x00, 0x00, 0x01}, []byte{0x04, 0x02, 0x00, 0x00}},
		{"read coils", []byte{0x01, 0x00, 0x00, 0x00, 0x03}, []byte{0x01, 0x01, 0x05}},
		{"read discrete", []byte{0x02, 0x00, 0x00, 0x00, 0x09}, []byte{0x02, 0x02, 0x00, 0x00}},
		{"write coil", []byte{0x05, 0x00, 0x0A, 0xFF, 0x00}, []byte{0x05, 0x00, 0x0A, 0xFF, 0x00}},
		{"write coil bad value", []byte{0x05, 0x00, 0x0A, 0x12, 0x34}, []byte{0x85, 0x03}},
		{"write register", []byte{0x06, 0x00, 0x10, 0xAB, 0xCD}, []byte{0x06, 0x00, 0x10, 0xAB, 0xCD}},
		{"write registers", []byte{0x10, 0x00, 0x20, 0x00, 0x02, 0x04, 0x00, 0x01, 0x00, 0x02}, []byte{0x10, 0x00, 0x20, 0x00, 0x02}},
		{"write registers bad count", []byte{0x10, 0x00, 0x20, 0x00, 0x02, 0x02, 0x00, 0x01}, []byte{0x90, 0x03}},
		{"write coils", []byte{0x0F, 0x00, 0x30, 0x00, 0x0A, 0x02, 0xFF, 0x01}, []byte{0x0F, 0x00, 0x30, 0x00, 0x0A}},
		{"illegal function", []byte{0x07}, []byte{0x87, 0x01}},
		{"illegal address", []byte{0x03, 0xFF, 0xFF, 0x00, 0x02}, []byte{0x83, 0x02}},
		{"zero quantity", []byte{0x03, 0x00, 0x00, 0x00, 0x00}, []byte{0x83, 0x03}},
		{"too many registers", []byte{0x03, 0x00, 0x00, 0x00, 0x7E}, []byte{0x83, 0x03}},
		{"short request", []byte{0x03, 0x00, 0x00}, []byte{0x83, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandlePDU(bank, tt.request))
		})
	}

	regs, err := bank.ReadRegisters(HoldingRegisters, 0x20, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2}, regs)

	bits, err := bank.ReadBits(Coils, 0x30, 10)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true, true, true, true, true, true, false}, bits)

	coil, err := bank.ReadBits(Coils, 0x0A, 1)
	require.NoError(t, err)
	assert.True(t, coil[0])
}

func TestBanks(t *testing.T) {
	bs := NewBanks(5, 1)
	assert.Equal(t, []int{0, 1, 5}, bs.Slaves())

	assert.ErrorIs(t, bs.Add(5), constant.ErrDuplicateSlave)
	assert.ErrorIs(t, bs.Add(0), constant.ErrInvalidSlave)
	assert.ErrorIs(t, bs.Add(256), constant.ErrInvalidSlave)
	require.NoError(t, bs.Add(7))
	_, ok := bs.Get(7)
	assert.True(t, ok)

	b := bs.Ensure(9)
	got, ok := bs.Get(9)
	assert.True(t, ok)
	assert.Same(t, b, got)
}

func TestBankRange(t *testing.T) {
	b := NewBank()
	_, err := b.ReadRegisters(HoldingRegisters, 65535, 2)
	assert.ErrorIs(t, err, ErrIllegalAddress)
	assert.Error(t, b.WriteBits(HoldingRegisters, 0, []bool{true}))

	require.NoError(t, b.WriteRegisters(InputRegisters, 65535, []uint16{7}))
	regs, err := b.ReadRegisters(InputRegisters, 65535, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), regs[0])

	holding, err := b.ReadRegisters(HoldingRegisters, 65535, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), holding[0])
}

func TestTableOf(t *testing.T) {
	for fc, want := range map[uint8]Table{1: Coils, 5: Coils, 15: Coils, 2: DiscreteInputs, 3: HoldingRegisters, 6: HoldingRegisters, 10: HoldingRegisters, 16: HoldingRegisters, 4: InputRegisters} {
		got, err := TableOf(fc)
		require.NoError(t, err)
		assert.Equal(t, want, got, "function code %d", fc)
	}
	_, err := TableOf(7)
	assert.Error(t, err)
}

func TestFunctionCodeOf(t *testing.T) {
	m := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M", Address: "1"})
	assert.Equal(t, uint8(3), FunctionCodeOf(m))
	s := newPoint(t, &runtime.PointRecord{Kind: constant.Status, Code: "S", Address: "1"})
	assert.Equal(t, uint8(1), FunctionCodeOf(s))
	sp := newPoint(t, &runtime.PointRecord{Kind: constant.Setpoint, Code: "SP", Address: "1", FunctionCode: 10})
	assert.Equal(t, uint8(6), FunctionCodeOf(sp))
}
