package modbus

import (
	"emssimulate/pkg/runtime/constant"
	"emssimulate/pkg/utils/binutil"
	"emssimulate/pkg/utils/crcutil"
	"github.com/pkg/errors"
)

// RTU ADU = 地址(1) + pdu + crc16(2), crc 低字节在前

const rtuMinLength = 4

// EncodeRTU wraps pdu into an RTU frame.
func EncodeRTU(unit byte, pdu []byte) []byte {
	frame := make([]byte, 0, len(pdu)+3)
	frame = append(frame, unit)
	frame = append(frame, pdu...)
	crc := make([]byte, 2)
	binutil.WriteUint16(crc, crcutil.CheckCrc16sum(frame))
	return append(frame, crc...)
}

// DecodeRTU verifies the CRC of frame and splits it into unit and pdu.
func DecodeRTU(frame []byte) (byte, []byte, error) {
	if len(frame) < rtuMinLength {
		return 0, nil, errors.Wrapf(constant.ErrProtocolViolation, "rtu frame too short: % x", frame)
	}
	if crcutil.CheckCrc16sum(frame) != 0 {
		return 0, nil, errors.Wrapf(constant.ErrProtocolViolation, "rtu crc mismatch: % x", frame)
	}
	return frame[0], frame[1 : len(frame)-2], nil
}

// RequestLength total length of the RTU request at the start of buf, 0 while the
// header is incomplete.
func RequestLength(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, nil
	}
	switch buf[1] {
	case 1, 2, 3, 4, 5, 6:
		return 8, nil
	case 15, 16:
		if len(buf) < 7 {
			return 0, nil
		}
		return 9 + int(buf[6]), nil
	default:
		return 0, errors.Wrapf(constant.ErrProtocolViolation, "unsupported function code %d", buf[1])
	}
}

// ProcessRTU handles one request frame, returning nil when no answer must be sent.
func ProcessRTU(banks *Banks, frame []byte) ([]byte, error) {
	unit, pdu, err := DecodeRTU(frame)
	if err != nil {
		return nil, err
	}
	bank, ok := banks.Get(int(unit))
	if !ok {
		// 非本机从站地址, 不应答
		return nil, nil
	}
	return EncodeRTU(unit, HandlePDU(bank, pdu)), nil
}
