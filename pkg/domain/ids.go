// Package domain defines typed identifiers shared across modules.
//
// Each identifier wraps a UUID so a SessionID can never be passed where an
// AccountID is expected. Parse* functions are the trust boundary: they reject
// empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "eligo/pkg/domain-errors"
)

type (
	SessionID        uuid.UUID
	AccountID        uuid.UUID
	RecordID         uuid.UUID
	CatalogProductID uuid.UUID
)

func (id SessionID) String() string        { return uuid.UUID(id).String() }
func (id AccountID) String() string        { return uuid.UUID(id).String() }
func (id RecordID) String() string         { return uuid.UUID(id).String() }
func (id CatalogProductID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CatalogProductID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IdentityRef is the subject assigned by the external identity provider.
// Its format is owned by the provider, so it stays an opaque string.
type IdentityRef string

func (r IdentityRef) String() string { return string(r) }

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session ID", s)
	return SessionID(u), err
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID("account ID", s)
	return AccountID(u), err
}

func ParseCatalogProductID(s string) (CatalogProductID, error) {
	u, err := parseUUID("catalog product ID", s)
	return CatalogProductID(u), err
}

// MustCatalogProductID is for compile-time tables only.
func MustCatalogProductID(s string) CatalogProductID {
	id, err := ParseCatalogProductID(s)
	if err != nil {
		panic(err)
	}
	return id
}
