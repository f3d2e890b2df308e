package dlt645

import (
	"math"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

// EncodeBCD little-endian BCD of length bytes, the sign is the top bit of the last
// byte.
func EncodeBCD(value int64, length int) ([]byte, error) {
	negative := value < 0
	v := value
	if negative {
		v = -v
	}
	buf := make([]byte, length)
	for i := 0; i < length; i++ {
		buf[i] = byte(v%10) | byte(v/10%10)<<4
		v /= 100
	}
	if v != 0 || buf[length-1]&0x80 != 0 {
		return nil, errors.Wrapf(constant.ErrValueOverflow, "%d does not fit %d bcd bytes", value, length)
	}
	if negative {
		buf[length-1] |= 0x80
	}
	return buf, nil
}

// DecodeBCD inverse of EncodeBCD.
func DecodeBCD(buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, errors.Wrap(constant.ErrMalformedBuffer, "empty bcd")
	}
	var v int64
	for i := len(buf) - 1; i >= 0; i-- {
		b := buf[i]
		if i == len(buf)-1 {
			b &= 0x7F
		}
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return 0, errors.Wrapf(constant.ErrMalformedBuffer, "invalid bcd byte %#02x", buf[i])
		}
		v = v*100 + int64(hi)*10 + int64(lo)
	}
	if buf[len(buf)-1]&0x80 != 0 {
		v = -v
	}
	return v, nil
}

// rawToInt raw point values travel as integers.
func rawToInt(raw float64) (int64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || math.Abs(raw) > math.MaxInt64/2 {
		return 0, errors.Wrapf(constant.ErrValueOverflow, "raw value %v", raw)
	}
	return int64(math.Round(raw)), nil
}
