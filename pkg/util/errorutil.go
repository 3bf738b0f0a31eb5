package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the bot and the admin API.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyClosed      = "ALREADY_CLOSED"
	CodeMalformedCommand   = "MALFORMED_COMMAND"
	CodeDuplicateID        = "DUPLICATE_ID"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewTicketNotFound flags a reference to an id that is not in the store.
func NewTicketNotFound(ticketID int64) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("ticket %d not found", ticketID), http.StatusNotFound,
		map[string]any{"ticket_id": ticketID})
}

// NewAlreadyClosed flags a mutation attempted on a closed ticket.
func NewAlreadyClosed(ticketID int64) error {
	return NewDomainError(CodeAlreadyClosed, fmt.Sprintf("ticket %d already closed", ticketID), http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

// NewMalformedCommand carries the literal usage hint for the operator.
func NewMalformedCommand(usage string) error {
	return NewDomainError(CodeMalformedCommand, usage, http.StatusBadRequest, nil)
}

// NewDuplicateID flags an id collision at ticket creation.
func NewDuplicateID(id int64) error {
	return NewDomainError(CodeDuplicateID, fmt.Sprintf("ticket id %d already allocated", id), http.StatusConflict,
		map[string]any{"ticket_id": id})
}

// NewPersistenceFailure wraps a failed durable read or write.
func NewPersistenceFailure(err error) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    "ticket storage unavailable",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf extracts the domain error code, or INTERNAL_ERROR for plain errors.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// IsExpected reports whether the error is a user or operator mistake rather
// than a system fault. Expected errors are answered verbatim and never logged
// as faults.
func IsExpected(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeAlreadyClosed, CodeMalformedCommand, CodeValidationFailed, CodeUnauthorized:
		return true
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
