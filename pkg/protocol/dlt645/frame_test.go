package dlt645

import (
	"testing"

	"emssimulate/pkg/runtime/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	a, err := ParseAddress("000000000001")
	require.NoError(t, err)
	assert.Equal(t, Address{0x01, 0, 0, 0, 0, 0}, a)
	assert.Equal(t, "000000000001", a.String())
	assert.Equal(t, "AAAAAAAAAAAA", BroadcastAddress.String())

	for _, bad := range []string{"", "12345", "00000000000G", "0000000000001"} {
		_, err = ParseAddress(bad)
		assert.ErrorIs(t, err, constant.ErrAddressFormat, bad)
	}
}

func TestEncodeDecode(t *testing.T) {
	a, _ := ParseAddress("000000000001")
	f := &Frame{Address: a, Control: ControlRead, Data: []byte{0x00, 0x01, 0x01, 0x02}}
	raw := Encode(f)
	assert.Equal(t, []byte{0x68, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x68, 0x11, 0x04, 0x33, 0x34, 0x34, 0x35, 0xB6, 0x16}, raw)

	withPreamble := append(append([]byte{}, Preamble...), raw...)
	length, err := FrameLength(withPreamble)
	require.NoError(t, err)
	assert.Equal(t, len(withPreamble), length)

	got, err := Decode(withPreamble)
	require.NoError(t, err)
	assert.Equal(t, f, got)

	broken := append([]byte{}, raw...)
	broken[14]++
	_, err = Decode(broken)
	assert.ErrorIs(t, err, constant.ErrProtocolViolation)
}

func TestFrameLength(t *testing.T) {
	raw := Encode(&Frame{Control: ControlReadAck, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}})

	cases := []struct {
		name string
		buf  []byte
		want int
		err  bool
	}{
		{name: "empty", buf: nil, want: 0},
		{name: "preamble only", buf: []byte{0xFE, 0xFE}, want: 0},
		{name: "partial header", buf: raw[:5], want: 0},
		{name: "header", buf: raw[:10], want: len(raw)},
		{name: "full", buf: raw, want: len(raw)},
		{name: "garbage", buf: []byte{0x01, 0x68}, err: true},
		{name: "bad second start", buf: []byte{0x68, 0, 0, 0, 0, 0, 0, 0x00, 0x11, 0x00}, err: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, err := FrameLength(c.buf)
			if c.err {
				assert.ErrorIs(t, err, constant.ErrProtocolViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, n)
		})
	}
}

func TestBCD(t *testing.T) {
	buf, err := EncodeBCD(2205, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x22, 0x00, 0x00}, buf)
	v, err := DecodeBCD(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2205), v)

	buf, err = EncodeBCD(-15, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x15, 0x80}, buf)
	v, err = DecodeBCD(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(-15), v)

	// 最高位为符号位
	_, err = EncodeBCD(8000, 2)
	assert.ErrorIs(t, err, constant.ErrValueOverflow)
	_, err = EncodeBCD(10000, 2)
	assert.ErrorIs(t, err, constant.ErrValueOverflow)

	_, err = DecodeBCD([]byte{0x1A})
	assert.ErrorIs(t, err, constant.ErrMalformedBuffer)
	_, err = DecodeBCD(nil)
	assert.ErrorIs(t, err, constant.ErrMalformedBuffer)
}
