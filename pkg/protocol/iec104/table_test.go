package iec104

import (
	"testing"

	"emssimulate/pkg/capture"
	"emssimulate/pkg/point"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoint(t *testing.T, record *runtime.PointRecord) point.Point {
	t.Helper()
	p, err := point.New(record, constant.FamilyTelecontrol)
	require.NoError(t, err)
	return p
}

func TestTable(t *testing.T) {
	tb := NewTable()
	m2 := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M2", Address: "0x4002", Value: 7})
	m1 := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M1", Address: "16385"})
	s1 := newPoint(t, &runtime.PointRecord{Kind: constant.Status, Code: "S1", Address: "16385"})
	require.NoError(t, tb.Add(m2))
	require.NoError(t, tb.Add(m1))
	require.NoError(t, tb.Add(s1))
	// 同一点重复注册无影响
	require.NoError(t, tb.Add(m1))
	assert.Equal(t, 3, tb.Len())

	clash := newPoint(t, &runtime.PointRecord{Kind: constant.Measurement, Code: "M3", Address: "16385"})
	assert.Error(t, tb.Add(clash))

	entries := tb.Entries(constant.Measurement)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(16385), entries[0].IOA)
	assert.Equal(t, "M2", entries[1].Point.Code())
	assert.Equal(t, float64(7), entries[1].Raw)

	p, ok := tb.Set(constant.Status, 16385, 1)
	require.True(t, ok)
	assert.Same(t, s1, p)
	assert.Equal(t, float64(1), s1.Base().RawValue())
	_, ok = tb.Set(constant.Control, 16385, 1)
	assert.False(t, ok)

	v, ok, err := tb.Value(s1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(1), v)

	tb.Remove(s1)
	_, ok = tb.Lookup(constant.Status, 16385)
	assert.False(t, ok)
	_, ok = tb.Lookup(constant.Measurement, 16385)
	assert.True(t, ok)
}

func TestLogTap(t *testing.T) {
	c := capture.New(10)
	tap := newLogTap("tap", c)
	tap.Debug("TX Raw[% x]", []byte{0x68, 0x04, 0x07, 0x00, 0x00, 0x00})
	tap.Debug("RX Raw[% x]", []byte{0x68, 0x04, 0x0B, 0x00, 0x00, 0x00})
	tap.Debug("send u frame: %s", "StartDtActive")
	tap.Warn("reconnecting")

	msgs := c.Messages(0)
	require.Len(t, msgs, 2)
	assert.Equal(t, capture.TX, msgs[0].Direction)
	assert.Equal(t, "68 04 07 00 00 00", msgs[0].Hex)
	assert.Equal(t, capture.RX, msgs[1].Direction)
}

func TestOptions(t *testing.T) {
	o, err := decodeOptions(map[string]interface{}{"port": 2405, "commonAddress": "3", "reportInterval": "500ms"}, DefaultServerOptions())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:2405", o.Address())
	assert.Equal(t, uint16(3), o.CommonAddress)
	assert.Equal(t, int64(500), o.ReportInterval.Milliseconds())

	c, err := decodeOptions(nil, DefaultClientOptions())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2404", c.Address())

	_, err = decodeOptions(map[string]interface{}{"port": 0}, DefaultServerOptions())
	assert.Error(t, err)
}
