package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeWorkerFailed      = "WORKER_FAILED"
	ErrCodeWorkerUnavailable = "WORKER_UNAVAILABLE"
	ErrCodeTimeout           = "AUTOMATION_TIMEOUT"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// AutomationError is the internal error type carrying an error code and the
// response body to send. It supports error wrapping via Unwrap.
type AutomationError struct {
	Code     string
	Message  string
	Response *AutomateResponse
	Err      error // wrapped original error
}

func (e *AutomationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// NewAutomationError creates an AutomationError whose response is a bare
// error message.
func NewAutomationError(code, message string, err error) *AutomationError {
	return &AutomationError{
		Code:     code,
		Message:  message,
		Response: &AutomateResponse{Status: StatusError, Message: message},
		Err:      err,
	}
}

// ToResponse returns the error body for the client.
func (e *AutomationError) ToResponse() *ErrorResponse {
	if e.Response == nil {
		return &ErrorResponse{Detail: &AutomateResponse{Status: StatusError, Message: e.Message}}
	}
	return &ErrorResponse{Detail: e.Response}
}
