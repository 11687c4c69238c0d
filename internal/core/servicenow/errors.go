// Package servicenow defines the ServiceNow integration domain: instance
// configuration, lookup reference data, browser-session records, and the
// structured error taxonomy shared by the bridge tiers.
package servicenow

import (
	"errors"
	"fmt"
)

// Code classifies a ServiceNow integration failure. Codes cross the bridge
// as data, never as uncaught panics.
type Code string

// Failure codes surfaced to the controller.
const (
	CodeNoConfig         Code = "SN_NO_CONFIG"
	CodeNoTab            Code = "SN_NO_TAB"
	CodePermissionDenied Code = "SN_PERMISSION_DENIED"
	CodeNotLoggedIn      Code = "SN_NOT_LOGGED_IN"
	CodeCSRFMissing      Code = "SN_CSRF_MISSING"
	CodeAPIError         Code = "SN_API_ERROR"
	CodeInvalidGroup     Code = "SYNC_INVALID_GROUP"
	CodeSubmittedSkip    Code = "SYNC_SUBMITTED_SKIP"
)

// Error is a structured ServiceNow failure with an optional recovery hint.
type Error struct {
	Code         Code
	Message      string
	RecoveryHint string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithHint attaches a recovery hint and returns the error.
func (e *Error) WithHint(hint string) *Error {
	e.RecoveryHint = hint
	return e
}

// CodeOf extracts the failure code from err, defaulting to SN_API_ERROR for
// anything that is not a structured ServiceNow error. Bridge tiers use this
// to guarantee the caller always receives a coded response.
func CodeOf(err error) Code {
	var snErr *Error
	if errors.As(err, &snErr) {
		return snErr.Code
	}
	return CodeAPIError
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code Code) bool {
	var snErr *Error
	return errors.As(err, &snErr) && snErr.Code == code
}

// HintOf returns the recovery hint of err, if any.
func HintOf(err error) string {
	var snErr *Error
	if errors.As(err, &snErr) {
		return snErr.RecoveryHint
	}
	return ""
}
