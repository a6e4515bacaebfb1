package models

import (
	"errors"

	dErrors "eligo/pkg/domain-errors"
)

// FailureKind classifies why a migration did not complete.
type FailureKind string

const (
	FailureSessionNotFound      FailureKind = "session_not_found"
	FailureSessionExpired       FailureKind = "session_expired"
	FailureInvalidRegistration  FailureKind = "invalid_registration"
	FailureSessionUnavailable   FailureKind = "session_unavailable"
	FailureIdentityProvisioning FailureKind = "identity_provisioning_failed"
	FailureProfilePersistence   FailureKind = "profile_persistence_failed"
	FailureRecordPersistence    FailureKind = "record_persistence_failed"
)

// GenericFailureMessage is shown for every retryable failure.
const GenericFailureMessage = "registration failed, please try again"

// Error is a typed migration failure. It wraps a domain error so transports
// render the code, and reports whether the caller may retry.
type Error struct {
	Kind      FailureKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsRetryable() bool { return e.Retryable }

func newError(kind FailureKind, retryable bool, code dErrors.Code, msg string, cause error) *Error {
	var err error
	if cause != nil {
		err = dErrors.Wrap(cause, code, msg)
	} else {
		err = dErrors.New(code, msg)
	}
	return &Error{Kind: kind, Retryable: retryable, Err: err}
}

func ErrSessionNotFound(cause error) *Error {
	return newError(FailureSessionNotFound, false, dErrors.CodeNotFound, "simulation session not found", cause)
}

func ErrSessionExpired() *Error {
	return newError(FailureSessionExpired, false, dErrors.CodeGone, "simulation session expired", nil)
}

// ErrInvalidRegistration keeps the validation message so the visitor can fix
// the form.
func ErrInvalidRegistration(cause error) *Error {
	msg := "invalid registration"
	var de *dErrors.Error
	if errors.As(cause, &de) {
		msg = de.Message
	}
	return newError(FailureInvalidRegistration, false, dErrors.CodeValidation, msg, cause)
}

func ErrSessionUnavailable(cause error) *Error {
	return newError(FailureSessionUnavailable, true, dErrors.CodeUnavailable, GenericFailureMessage, cause)
}

func ErrIdentityProvisioning(cause error) *Error {
	return newError(FailureIdentityProvisioning, true, dErrors.CodeUnavailable, GenericFailureMessage, cause)
}

// ErrEmailTaken rejects a registration whose email already has a login
// identity. Retrying cannot fix it.
func ErrEmailTaken(cause error) *Error {
	return newError(FailureInvalidRegistration, false, dErrors.CodeConflict, "an account already exists for this email", cause)
}

func ErrProfilePersistence(cause error) *Error {
	return newError(FailureProfilePersistence, true, dErrors.CodeInternal, GenericFailureMessage, cause)
}

func ErrRecordPersistence(cause error) *Error {
	return newError(FailureRecordPersistence, true, dErrors.CodeInternal, GenericFailureMessage, cause)
}

// KindOf returns the failure kind of err, or "" when err is not a migration
// failure.
func KindOf(err error) FailureKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
