package apperr

import "errors"

var (
	// ErrSessionExpired is returned for signals against a missing or expired selection.
	ErrSessionExpired = errors.New("selection session expired")
	// ErrInvalidIndex is returned when a pick addresses no candidate.
	ErrInvalidIndex = errors.New("invalid selection index")
	// ErrScopeBusy is returned while an answer is still being composed for the scope.
	ErrScopeBusy = errors.New("scope is busy")
)

type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewValidationWrap(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}

// FetchFailure is a per-source fetch error. It is recorded, never propagated.
type FetchFailure struct {
	Source string
	Err    error
}

func (e *FetchFailure) Error() string {
	return "fetch " + e.Source + ": " + e.Err.Error()
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// ShortlistFailure means the model-driven shortlist produced nothing usable.
type ShortlistFailure struct {
	Reason string
	Err    error
}

func (e *ShortlistFailure) Error() string {
	if e.Err != nil {
		return "shortlist: " + e.Reason + ": " + e.Err.Error()
	}
	return "shortlist: " + e.Reason
}

func (e *ShortlistFailure) Unwrap() error {
	return e.Err
}

// CompositionError means the answer could not be composed.
type CompositionError struct {
	Err error
}

func (e *CompositionError) Error() string {
	return "compose answer: " + e.Err.Error()
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

func NewComposition(err error) *CompositionError {
	return &CompositionError{Err: err}
}

// StoreError wraps a persistence failure for the operation named by Op.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStore(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
