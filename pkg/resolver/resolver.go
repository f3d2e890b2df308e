package resolver

import (
	"encoding/hex"
	"strconv"
	"strings"

	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
)

const (
	MaxModbusAddress = 0xFFFF
	MaxIec104Address = 0xFFFFFF
)

// ResolveModbus accepts "0x" followed by 1 to 4 hex digits, or a decimal in 0..65535.
func ResolveModbus(address string) (uint16, error) {
	s := strings.TrimSpace(address)
	if len(s) == 0 {
		return 0, errors.Wrap(constant.ErrAddressFormat, "empty modbus address")
	}
	if hasPrefix(s, "0x") {
		digits := s[2:]
		if len(digits) == 0 || len(digits) > 4 {
			return 0, errors.Wrapf(constant.ErrAddressFormat, "modbus address %q", address)
		}
		v, err := strconv.ParseUint(digits, 16, 16)
		if err != nil {
			return 0, errors.Wrapf(constant.ErrAddressFormat, "modbus address %q", address)
		}
		return uint16(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v > MaxModbusAddress {
		return 0, errors.Wrapf(constant.ErrAddressFormat, "modbus address %q", address)
	}
	return uint16(v), nil
}

// ResolveIec104 information object address. Decimal input keeps its value even with
// leading zeros, radix prefixes 0x 0o 0b are honored.
func ResolveIec104(address string) (uint32, error) {
	s := strings.TrimSpace(address)
	if len(s) == 0 {
		return 0, errors.Wrap(constant.ErrAddressFormat, "empty iec104 address")
	}
	base := 10
	switch {
	case hasPrefix(s, "0x"):
		base, s = 16, s[2:]
	case hasPrefix(s, "0o"):
		base, s = 8, s[2:]
	case hasPrefix(s, "0b"):
		base, s = 2, s[2:]
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil || v > MaxIec104Address {
		return 0, errors.Wrapf(constant.ErrAddressFormat, "iec104 address %q", address)
	}
	return uint32(v), nil
}

// ResolveDlt645 data identifier. Spaces and the 0x prefix are dropped, odd length
// input is left padded, the byte order is reversed to wire order and 0x re-added:
// "0x1234" resolves to "0x3412".
func ResolveDlt645(address string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(address), " ", "")
	if hasPrefix(s, "0x") {
		s = s[2:]
	}
	if len(s) == 0 {
		return "", errors.Wrapf(constant.ErrAddressFormat, "dlt645 address %q", address)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.Wrapf(constant.ErrAddressFormat, "dlt645 address %q", address)
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return "0x" + strings.ToUpper(hex.EncodeToString(b)), nil
}

// Dlt645Bytes returns the wire bytes of a resolved data identifier.
func Dlt645Bytes(resolved string) ([]byte, error) {
	s := resolved
	if hasPrefix(s, "0x") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(constant.ErrAddressFormat, "dlt645 address %q", resolved)
	}
	return b, nil
}

// Resolve dispatches on the protocol family and renders the canonical address.
func Resolve(family constant.ProtocolFamily, address string) (string, error) {
	switch family {
	case constant.FamilyRegister:
		v, err := ResolveModbus(address)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case constant.FamilyTelecontrol:
		v, err := ResolveIec104(address)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case constant.FamilyMeter:
		return ResolveDlt645(address)
	default:
		return "", errors.Wrapf(constant.ErrProtocolType, "family %d", family)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
