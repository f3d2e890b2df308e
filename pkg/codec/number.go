package codec

import (
	"math"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

type numberKind int

const (
	signedKind numberKind = iota
	unsignedKind
	floatKind
)

type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

func toNumber(value interface{}) (number, error) {
	switch v := value.(type) {
	case int:
		return number{kind: signedKind, i: int64(v)}, nil
	case int8:
		return number{kind: signedKind, i: int64(v)}, nil
	case int16:
		return number{kind: signedKind, i: int64(v)}, nil
	case int32:
		return number{kind: signedKind, i: int64(v)}, nil
	case int64:
		return number{kind: signedKind, i: v}, nil
	case uint:
		return number{kind: unsignedKind, u: uint64(v)}, nil
	case uint8:
		return number{kind: unsignedKind, u: uint64(v)}, nil
	case uint16:
		return number{kind: unsignedKind, u: uint64(v)}, nil
	case uint32:
		return number{kind: unsignedKind, u: uint64(v)}, nil
	case uint64:
		return number{kind: unsignedKind, u: v}, nil
	case float32:
		return number{kind: floatKind, f: float64(v)}, nil
	case float64:
		return number{kind: floatKind, f: v}, nil
	case bool:
		if v {
			return number{kind: unsignedKind, u: 1}, nil
		}
		return number{kind: unsignedKind}, nil
	default:
		return number{}, errors.Errorf("unsupported value type %T", value)
	}
}

func (n number) float() float64 {
	switch n.kind {
	case signedKind:
		return float64(n.i)
	case unsignedKind:
		return float64(n.u)
	default:
		return n.f
	}
}

// integer returns the two's complement bits of n in a bits wide container.
func (n number) integer(bits int, signed bool) (uint64, error) {
	var maxUnsigned uint64 = math.MaxUint64
	if bits < 64 {
		maxUnsigned = 1<<uint(bits) - 1
	}
	maxSigned := int64(maxUnsigned >> 1)
	minSigned := -maxSigned - 1

	switch n.kind {
	case floatKind:
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
			return 0, constant.ErrValueOverflow
		}
		r := math.Round(n.f)
		// 2^bits 和 2^(bits-1) 在 float64 中可精确表示
		limit := math.Ldexp(1, bits)
		if signed {
			half := math.Ldexp(1, bits-1)
			if r < -half || r >= half {
				return 0, constant.ErrValueOverflow
			}
			return uint64(int64(r)) & maxUnsigned, nil
		}
		if r < 0 || r >= limit {
			return 0, constant.ErrValueOverflow
		}
		return uint64(r), nil
	case signedKind:
		if signed {
			if n.i < minSigned || n.i > maxSigned {
				return 0, constant.ErrValueOverflow
			}
			return uint64(n.i) & maxUnsigned, nil
		}
		if n.i < 0 || uint64(n.i) > maxUnsigned {
			return 0, constant.ErrValueOverflow
		}
		return uint64(n.i), nil
	default:
		if signed {
			if n.u > uint64(maxSigned) {
				return 0, constant.ErrValueOverflow
			}
			return n.u, nil
		}
		if n.u > maxUnsigned {
			return 0, constant.ErrValueOverflow
		}
		return n.u, nil
	}
}

// ToFloat64 widens any decoded or user supplied numeric value.
func ToFloat64(value interface{}) (float64, error) {
	n, err := toNumber(value)
	if err != nil {
		return 0, err
	}
	return n.float(), nil
}
