package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
// - ErrNotFound: row does not exist
// - ErrExpired: session row or token is past its expiry
// - ErrAlreadyUsed: one-way latch already flipped (session migrated)
// - ErrConflict: a unique constraint or reservation is held by someone else
// - ErrInvalidState: row in the wrong state for the requested transition
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
