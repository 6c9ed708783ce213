// Package domainerrors provides code-carrying errors for the escrow engine.
//
// Stores return infrastructure sentinels (pkg/platform/sentinel); services
// translate them into coded domain errors; transport maps codes to HTTP
// statuses. Codes travel with the error through wrapping, so callers check
// HasCode rather than string-matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// CodeInvariantViolation marks constructor/transition invariant failures.
	// Services translate these to CodeValidation or CodeConflict at the API
	// boundary depending on whether the caller could have known better.
	CodeInvariantViolation Code = "invariant_violation"

	// Escrow-specific codes. Each corresponds to a distinct caller remedy, so
	// they are first-class codes rather than detail strings on a generic code.
	CodeInvalidState          Code = "invalid_state"
	CodeDuplicateApproval     Code = "duplicate_approval"
	CodeConditionAlreadyMet   Code = "condition_already_met"
	CodeInsufficientFunds     Code = "insufficient_funds"
	CodeMilestoneNotReady     Code = "milestone_not_ready"
	CodeInvalidMilestoneGraph Code = "invalid_milestone_graph"
	CodePaymentFailed         Code = "payment_failed"
	CodeRequestExpired        Code = "request_expired"
)

// DomainError carries a code alongside the message and an optional cause.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return DomainError{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de DomainError
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to an HTTP status. Unknown codes map
// to 500 so a missing entry fails loudly rather than leaking a 200.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest,
		CodeInvalidMilestoneGraph:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateApproval, CodeConditionAlreadyMet,
		CodeInvalidState, CodeRequestExpired:
		return http.StatusConflict
	case CodeInsufficientFunds, CodeMilestoneNotReady, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
