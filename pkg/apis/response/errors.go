package response

import (
	stderrors "errors"

	"emssimulate/pkg/runtime/constant"
)

var errorMessages = map[ErrCode]string{
	ErrCodeMalformedJSON:              "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:                "Request body error",
	ErrCodeResourceExists:             "Resource %s already exists.",
	ErrCodeResourceNotFound:           "Resource %s not found.",
	ErrCodeLegalActionNotFound:        "Legal action not found.",
	ErrCodeTooManyJsonPatchOperations: "The allowed maximum operations in a JSON patch is %d.",
	ErrCodeChannelNotFound:            "Channel %s not found.",
	ErrCodeChannelOperatorUnSupported: "Channel operator %s unsupported.",
	ErrCodePointNotFound:              "Point %s not found.",
	ErrCodeDuplicateCode:              "Point code %s already in use.",
	ErrCodeInvalidSlave:               "Slave %s must be within 1..255 and not registered yet.",
	ErrCodeValueLimit:                 "Value out of limits: %s",
	ErrCodeNotWritable:                "Point %s is not writable.",
	ErrCodeChannelNotRunning:          "Channel %s is not running.",
	ErrCodeProtocolType:               "Protocol type %s unsupported.",
	ErrCodeInvalidPoint:               "Invalid point: %s",
	ErrCodeDeviceIO:                   "Device I/O failed: %s",
	ErrCodeTopologyFrozen:             "Points of channel %s can not change while it is running.",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errorMessages[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: errorMessages[ErrCodeRequestBody],
}

func ErrTooManyJsonPatchOperations(max int) *responseError {
	return generateError(ErrCodeTooManyJsonPatchOperations, max)
}

func ErrChannelNotFound(id string) *responseError {
	return generateError(ErrCodeChannelNotFound, id)
}

func ErrChannelOperatorUnSupported(action string) *responseError {
	return generateError(ErrCodeChannelOperatorUnSupported, action)
}

func ErrPointNotFound(code string) *responseError {
	return generateError(ErrCodePointNotFound, code)
}

func ErrProtocolType(pt string) *responseError {
	return generateError(ErrCodeProtocolType, pt)
}

// FromError maps a domain error onto its response error, keeping err as the cause.
// Errors without a dedicated code are reported as device I/O failures.
func FromError(subject string, err error) *responseError {
	if re, ok := err.(*responseError); ok {
		return re
	}
	switch {
	case stderrors.Is(err, constant.ErrPointNotFound):
		return generateErrorWrapper(ErrCodePointNotFound, err, subject)
	case stderrors.Is(err, constant.ErrChannelNotFound):
		return generateErrorWrapper(ErrCodeChannelNotFound, err, subject)
	case stderrors.Is(err, constant.ErrDuplicateCode):
		return generateErrorWrapper(ErrCodeDuplicateCode, err, subject)
	case stderrors.Is(err, constant.ErrInvalidSlave), stderrors.Is(err, constant.ErrDuplicateSlave):
		return generateErrorWrapper(ErrCodeInvalidSlave, err, subject)
	case stderrors.Is(err, constant.ErrValueLimit), stderrors.Is(err, constant.ErrValueOverflow), stderrors.Is(err, constant.ErrScaleZero):
		return generateErrorWrapper(ErrCodeValueLimit, err, err.Error())
	case stderrors.Is(err, constant.ErrNotWritable):
		return generateErrorWrapper(ErrCodeNotWritable, err, subject)
	case stderrors.Is(err, constant.ErrHandlerNotRunning), stderrors.Is(err, constant.ErrHandlerNotInitialized):
		return generateErrorWrapper(ErrCodeChannelNotRunning, err, subject)
	case stderrors.Is(err, constant.ErrProtocolType):
		return generateErrorWrapper(ErrCodeProtocolType, err, subject)
	case stderrors.Is(err, constant.ErrTopologyFrozen):
		return generateErrorWrapper(ErrCodeTopologyFrozen, err, subject)
	case stderrors.Is(err, constant.ErrAddressFormat), stderrors.Is(err, constant.ErrPointKind), stderrors.Is(err, constant.ErrInvalidPoint):
		return generateErrorWrapper(ErrCodeInvalidPoint, err, err.Error())
	default:
		return generateErrorWrapper(ErrCodeDeviceIO, err, err.Error())
	}
}
