package constant

import "errors"

var (
	ErrAddressFormat           = errors.New("malformed point address")
	ErrUnsupportedDecodeFormat = errors.New("unsupported decode format")
	ErrMalformedBuffer         = errors.New("register buffer length mismatch")
	ErrValueOverflow           = errors.New("value overflows decode format")
	ErrDuplicateCode           = errors.New("point code already exists")
	ErrPointNotFound           = errors.New("point not found")
	ErrInvalidSlave            = errors.New("invalid slave address")
	ErrDuplicateSlave          = errors.New("slave address already exists")
	ErrScaleZero               = errors.New("scale must not be zero")
	ErrValueLimit              = errors.New("value out of engineering limits")
	ErrConnection              = errors.New("unable to connect to device")
	ErrHandoffTimeout          = errors.New("handoff timed out")
	ErrProtocolViolation       = errors.New("protocol violation")
	ErrHandlerNotInitialized   = errors.New("protocol handler not initialized")
	ErrHandlerNotRunning       = errors.New("protocol handler not running")
	ErrTopologyFrozen          = errors.New("point topology frozen while running")
	ErrNotWritable             = errors.New("point is not writable")
	ErrProtocolType            = errors.New("unsupported protocol type")
	ErrPointKind               = errors.New("unsupported point kind")
	ErrChannelRunning          = errors.New("channel is running")
	ErrChannelNotFound         = errors.New("channel not found")
	ErrBridgeClosed            = errors.New("bridge closed")
	ErrInvalidPoint            = errors.New("invalid point")
)
