// Package apperr defines the discriminated error kinds shared by the money core.
// Domain packages declare their sentinels with New and callers branch on KindOf.
package apperr

import "errors"

// Kind classifies a domain failure.
type Kind string

const (
	KindInternal                Kind = "internal"
	KindInsufficientFunds       Kind = "insufficient_funds"
	KindDuplicateReference      Kind = "duplicate_reference"
	KindInvalidHoldState        Kind = "invalid_hold_state"
	KindInvalidTransition       Kind = "invalid_transition"
	KindInvalidConfirmationCode Kind = "invalid_confirmation_code"
	KindNotFound                Kind = "not_found"
	KindConcurrencyConflict     Kind = "concurrency_conflict"
	KindForbidden               Kind = "forbidden"
	KindInvalidInput            Kind = "invalid_input"
	KindTooManyAttempts         Kind = "too_many_attempts"
	KindNotReversible           Kind = "not_reversible"
)

// Error is a typed domain error. Sentinels are compared by identity, so
// errors.Is(err, wallet.ErrInsufficientFunds) keeps working through %w wrapping.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Shared sentinels used across domains.
var (
	ErrConcurrencyConflict = New(KindConcurrencyConflict, "concurrent modification, retry later")
	ErrForbidden           = New(KindForbidden, "caller is not allowed to perform this operation")
)
