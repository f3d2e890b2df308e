package response

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// responseError one entry of the errors array returned by the api.
type responseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Err     error   `json:"-"`
}

func (re *responseError) Error() string {
	if re == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", re.Code, re.Message)
}

func (re *responseError) GetCode() ErrCode {
	if re == nil {
		return 0
	}
	return re.Code
}

func (re *responseError) Unwrap() error {
	return re.Err
}

// MultiError is marshalled as {"errors": [...]}. Its zero value is ready to use and
// every method is goroutine safe.
type MultiError struct {
	mtx    sync.Mutex
	errors []error
}

func NewMultiError(err ...error) *MultiError {
	return &MultiError{errors: err}
}

func (e *MultiError) Add(err ...error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.errors = append(e.errors, err...)
}

func (e *MultiError) Len() int {
	if e == nil {
		return 0
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.errors)
}

// Errors returns a copy of the collected errors.
func (e *MultiError) Errors() []error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return append([]error(nil), e.errors...)
}

type multiErrorJSON struct {
	Errors []*responseError `json:"errors"`
}

func (e *MultiError) MarshalJSON() ([]byte, error) {
	errs := e.Errors()
	out := multiErrorJSON{Errors: make([]*responseError, 0, len(errs))}
	for _, err := range errs {
		re, ok := err.(*responseError)
		if !ok {
			re = generateErrorWrapper(ErrCodeRequestBody, err)
			re.Message = err.Error()
		}
		out.Errors = append(out.Errors, re)
	}
	return json.Marshal(out)
}

func (e *MultiError) UnmarshalJSON(bytes []byte) error {
	var in multiErrorJSON
	if err := json.Unmarshal(bytes, &in); err != nil {
		return err
	}
	for _, re := range in.Errors {
		e.Add(re)
	}
	return nil
}

func (e *MultiError) Error() string {
	errs := e.Errors()
	es := make([]string, 0, len(errs))
	for _, err := range errs {
		es = append(es, err.Error())
	}
	return strings.Join(es, "; ")
}

func generateError(code ErrCode, s ...interface{}) *responseError {
	return generateErrorWrapper(code, nil, s...)
}

func generateErrorWrapper(code ErrCode, err error, s ...interface{}) *responseError {
	return &responseError{
		Code:    code,
		Message: fmt.Sprintf(errorMessages[code], s...),
		Err:     err,
	}
}
