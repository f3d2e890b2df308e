package apis

import (
	"errors"
)

const (
	// HTTP Request Fields
	IfMatch = "If-Match"

	// HTTP Response Fields
	Location = "Location"
	ETag     = "ETag"

	// Query parameters
	Filter    = "filter"
	Limit     = "limit"
	PageIndex = "pageIndex"
	PageSize  = "pageSize"
)

var (
	ErrMismatch  = errors.New("resource mismatch")
	ErrInternal  = errors.New("internal error")
	ErrImmutable = errors.New("immutable")
)
