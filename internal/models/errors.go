package models

import (
	"errors"
	"fmt"
)

// GenericErrorMessage is shown when the payments API rejects a call without a message.
const GenericErrorMessage = "Something went wrong. Please try again."

var (
	ErrStageNotAllowed         = errors.New("operation not allowed in current stage")
	ErrOperationInFlight       = errors.New("another operation is in progress")
	ErrPaymentAlreadyAttempted = errors.New("first payment already attempted for this session")
	ErrPaymentLocked           = errors.New("first payment already in progress for this subscription")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrStaleResponse           = errors.New("response superseded by a newer request")
	ErrSessionDiscarded        = errors.New("session was reset or discarded")
	ErrSessionNotFound         = errors.New("wizard session not found")
	ErrFetchInFlight           = errors.New("list fetch already in progress")
	ErrUnknownList             = errors.New("unknown list")
	ErrJournalDisabled         = errors.New("wizard journal is not configured")
)

// ValidationError is raised before any network call.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RejectedError carries the payments API's own message for a refused call.
type RejectedError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Message)
}

// NewRejectedError falls back to GenericErrorMessage when msg is empty.
func NewRejectedError(operation string, statusCode int, msg string) *RejectedError {
	if msg == "" {
		msg = GenericErrorMessage
	}
	return &RejectedError{Operation: operation, StatusCode: statusCode, Message: msg}
}

// UserMessage renders err the way the dashboard shows it.
func UserMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Message
	}
	if errors.Is(err, ErrCustomerNotFound) {
		return "Customer not found"
	}
	return GenericErrorMessage
}
