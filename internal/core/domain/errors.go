package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLegacyReceiptShape = errors.New("receipt contract returned the legacy layout without a token field")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoWallet           = errors.New("no signing wallet configured")
)

// ValidationError is a local, pre-submission failure. Message is shown to the
// user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NetworkMismatchError blocks writes until the session switches network.
type NetworkMismatchError struct {
	Want    uint64
	Got     uint64
	Network string
}

func (e *NetworkMismatchError) Error() string {
	return fmt.Sprintf("Please switch to %s network.", e.Network)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransportError wraps a failed ledger call: unreachable node, revert or a
// rejected signature.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
