package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	// ErrUnauthorized is returned for bad credentials or tokens.
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidDate       = NewValidationError("date", "must be a valid calendar date")
	ErrUnknownFrequency  = NewValidationError("frequency", "must be one of daily, weekly, monthly, annually")
	ErrInvalidAmount     = NewValidationError("cost", "must be a finite non-negative amount")
	ErrEmptyName         = NewValidationError("name", "is required")
	ErrEmptyCategory     = NewValidationError("category", "is required")
	ErrMissingParameter  = NewValidationError("parameter", "is required")
	ErrInvalidCredential = NewValidationError("credentials", "email and password are required")
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Field string
	Msg   string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Msg
}

// MissingParameter is ErrMissingParameter naming the absent field.
func MissingParameter(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingParameter, field)
}

// UpstreamError wraps a failure of an external collaborator such as the
// receipt extraction service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return "upstream " + e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err as a StoreError unless it already carries a domain meaning.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || IsValidation(err) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ReconciliationError means a receipt-confirmed transaction was stored but
// the receipt could not be updated to point at it.
type ReconciliationError struct {
	TransactionID string
	ReceiptID     string
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("receipt %s not reconciled with transaction %s: %v", e.ReceiptID, e.TransactionID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
