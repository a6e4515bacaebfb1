package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "eligo/pkg/domain"
	dErrors "eligo/pkg/domain-errors"
)

// TypeTemporarySession discriminates simulation session tokens from any other
// credential signed with the same key.
const TypeTemporarySession = "temporary_session"

const defaultIssuer = "eligo"

// SessionClaims represents the JWT claims of a temporary session token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for every verification failure. Callers never
// learn which check failed.
var ErrInvalidToken = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session token")

// ErrExpiredToken is found in the chain of an ErrInvalidToken whose only
// failed check is expiry. The error renders exactly like ErrInvalidToken.
var ErrExpiredToken = errors.New("session token expired")

// JWTService issues and validates temporary session tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     defaultIssuer,
	}
}

// GenerateSessionToken signs a token bound to sessionID that expires exactly
// at expiresAt.
func (s *JWTService) GenerateSessionToken(sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, error) {
	if sessionID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "session ID is required")
	}
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		SessionID: sessionID.String(),
		Type:      TypeTemporarySession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signedToken, nil
}

// ValidateSessionToken checks signature, algorithm, issuer, expiry and type
// discriminator as of now, and returns the bound session ID.
//
// A token that passes every check but expiry fails with ErrExpiredToken in
// its chain and still returns the session ID, so a caller can report the
// state the session ended in. Callers that only test err != nil stay
// fail-closed.
func (s *JWTService) ValidateSessionToken(tokenString string, now time.Time) (id.SessionID, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	expired := err != nil && onlyExpired(err)
	if (err != nil || !parsed.Valid) && !expired {
		return id.SessionID{}, ErrInvalidToken
	}
	if claims.Type != TypeTemporarySession {
		return id.SessionID{}, ErrInvalidToken
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return id.SessionID{}, ErrInvalidToken
	}
	if expired {
		return sessionID, dErrors.Wrap(ErrExpiredToken, dErrors.CodeUnauthorized, "invalid or expired session token")
	}
	return sessionID, nil
}

// onlyExpired reports whether a parse error is a claims failure on exp alone.
// The signature is verified before claims, so such a token is authentic.
func onlyExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenNotValidYet) &&
		!errors.Is(err, jwt.ErrTokenRequiredClaimMissing)
}
