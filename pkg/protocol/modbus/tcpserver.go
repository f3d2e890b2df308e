package modbus

import (
	"emssimulate/pkg/utils/binutil"
	mbserver "github.com/simonvetter/modbus"
	"k8s.io/klog/v2"
)

var _ mbserver.RequestHandler = (*requestHandler)(nil)

// requestHandler serves simonvetter/modbus requests from the register banks. Each
// request is turned back into its PDU so the tcp slave shares HandlePDU with the rtu
// slaves and the capture shows real frames.
type requestHandler struct {
	server *Server
}

// MBAP 事务号固定为 0
func mbap(unit byte, pdu []byte) []byte {
	frame := make([]byte, 7, 7+len(pdu))
	binutil.WriteUint16(frame[4:], uint16(len(pdu)+1))
	frame[6] = unit
	return append(frame, pdu...)
}

func readRequest(fc byte, addr, quantity uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fc
	binutil.WriteUint16(pdu[1:], addr)
	binutil.WriteUint16(pdu[3:], quantity)
	return pdu
}

func writeBitsRequest(addr uint16, values []bool) []byte {
	if len(values) == 1 {
		value := uint16(0x0000)
		if values[0] {
			value = 0xFF00
		}
		return readRequest(5, addr, value)
	}
	data := binutil.ShrinkBool(binutil.BoolToByte(values))
	pdu := append(readRequest(15, addr, uint16(len(values))), byte(len(data)))
	return append(pdu, data...)
}

func writeRegistersRequest(addr uint16, values []uint16) []byte {
	if len(values) == 1 {
		return readRequest(6, addr, values[0])
	}
	pdu := append(readRequest(16, addr, uint16(len(values))), byte(2*len(values)))
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binutil.WriteUint16(data[2*i:], v)
	}
	return append(pdu, data...)
}

func exceptionError(code byte) error {
	switch code {
	case ExceptionIllegalFunction:
		return mbserver.ErrIllegalFunction
	case ExceptionIllegalAddress:
		return mbserver.ErrIllegalDataAddress
	default:
		return mbserver.ErrIllegalDataValue
	}
}

func (h *requestHandler) exchange(clientAddr string, unit uint8, request []byte) ([]byte, error) {
	s := h.server
	s.Capture.RecordRx(mbap(unit, request), "request")
	bank, ok := s.banks.Get(int(unit))
	if !ok {
		klog.V(4).InfoS("Request for unknown slave", "handler", s.Name, "remote", clientAddr, "unit", unit)
		return nil, mbserver.ErrGWTargetFailedToRespond
	}
	resp := HandlePDU(bank, request)
	s.Capture.RecordTx(mbap(unit, resp), "response")
	if resp[0]&0x80 != 0 {
		return nil, exceptionError(resp[1])
	}
	return resp, nil
}

func (h *requestHandler) readBits(clientAddr string, unit uint8, fc byte, addr, quantity uint16) ([]bool, error) {
	resp, err := h.exchange(clientAddr, unit, readRequest(fc, addr, quantity))
	if err != nil {
		return nil, err
	}
	return binutil.ByteToBool(binutil.ExpandBool(resp[2:], int(resp[1]))[:quantity]), nil
}

func (h *requestHandler) readRegisters(clientAddr string, unit uint8, fc byte, addr, quantity uint16) ([]uint16, error) {
	resp, err := h.exchange(clientAddr, unit, readRequest(fc, addr, quantity))
	if err != nil {
		return nil, err
	}
	regs := make([]uint16, quantity)
	for i := range regs {
		regs[i] = binutil.ParseUint16(resp[2+2*i:])
	}
	return regs, nil
}

func (h *requestHandler) HandleCoils(req *mbserver.CoilsRequest) ([]bool, error) {
	if req.IsWrite {
		_, err := h.exchange(req.ClientAddr, req.UnitId, writeBitsRequest(req.Addr, req.Args))
		return nil, err
	}
	return h.readBits(req.ClientAddr, req.UnitId, 1, req.Addr, req.Quantity)
}

func (h *requestHandler) HandleDiscreteInputs(req *mbserver.DiscreteInputsRequest) ([]bool, error) {
	return h.readBits(req.ClientAddr, req.UnitId, 2, req.Addr, req.Quantity)
}

func (h *requestHandler) HandleHoldingRegisters(req *mbserver.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		_, err := h.exchange(req.ClientAddr, req.UnitId, writeRegistersRequest(req.Addr, req.Args))
		return nil, err
	}
	return h.readRegisters(req.ClientAddr, req.UnitId, 3, req.Addr, req.Quantity)
}

func (h *requestHandler) HandleInputRegisters(req *mbserver.InputRegistersRequest) ([]uint16, error) {
	return h.readRegisters(req.ClientAddr, req.UnitId, 4, req.Addr, req.Quantity)
}
