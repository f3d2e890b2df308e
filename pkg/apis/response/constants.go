package response

type ErrCode int

const (
	_                              ErrCode = 10000 + iota
	ErrCodeMalformedJSON                   // 10001
	ErrCodeRequestBody                     // 10002
	ErrCodeResourceExists                  // 10003
	ErrCodeResourceNotFound                // 10004
	ErrCodeLegalActionNotFound             // 10005
	ErrCodeTooManyJsonPatchOperations      // 10006
	ErrCodeChannelNotFound                 // 10007
	ErrCodeChannelOperatorUnSupported      // 10008
	ErrCodePointNotFound                   // 10009
	ErrCodeDuplicateCode                   // 10010
	ErrCodeInvalidSlave                    // 10011
	ErrCodeValueLimit                      // 10012
	ErrCodeNotWritable                     // 10013
	ErrCodeChannelNotRunning               // 10014
	ErrCodeProtocolType                    // 10015
	ErrCodeInvalidPoint                    // 10016
	ErrCodeDeviceIO                        // 10017
	ErrCodeTopologyFrozen                  // 10018
)

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end, and append comment of number
// Meanwhile, the corresponding error message SHOULD be appended in response.errors
// The order MUST be consistent between them
