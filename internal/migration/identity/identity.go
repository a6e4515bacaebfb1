// Package identity provisions login identities with the external auth
// provider. The migration saga creates one identity per account and deletes
// it again when a later step fails.
package identity

import (
	"context"
	"errors"
	"fmt"

	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

var (
	ErrEmailTaken  = fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	ErrUnavailable = fmt.Errorf("identity provider unavailable: %w", sentinel.ErrUnavailable)
)

// MetadataSessionKey tags an identity with the session whose migration
// created it. A migration may only delete or replace identities carrying its
// own session.
const MetadataSessionKey = "source_session_id"

// NewIdentity is the request to create a login identity.
type NewIdentity struct {
	Email    string
	Password string
	Metadata map[string]string
}

// Identity is an existing login identity.
type Identity struct {
	Ref      id.IdentityRef
	Email    string
	Metadata map[string]string
}

// CreatedFor reports whether the identity was created by the migration of
// sessionID.
func (i *Identity) CreatedFor(sessionID id.SessionID) bool {
	return i.Metadata[MetadataSessionKey] == sessionID.String()
}

// Provider creates, finds and deletes identities. Delete of an unknown
// identity succeeds so compensation can be retried. FindByEmail returns
// sentinel.ErrNotFound when no identity uses the email.
type Provider interface {
	Create(ctx context.Context, req NewIdentity) (id.IdentityRef, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Delete(ctx context.Context, ref id.IdentityRef) error
}

// IsEmailTaken reports whether err means the email is already registered.
func IsEmailTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken)
}
