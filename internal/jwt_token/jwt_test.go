package jwttoken

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "eligo/pkg/domain"
	dErrors "eligo/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key")
	sessionID  = id.SessionID(uuid.New())
	issuedAt   = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	expiresAt  = issuedAt.Add(24 * time.Hour)
)

func Test_GenerateAndValidateSessionToken(t *testing.T) {
	token, err := jwtService.GenerateSessionToken(sessionID, issuedAt, expiresAt)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := jwtService.ValidateSessionToken(token, issuedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, sessionID, got)
}

func Test_ValidateSessionToken_Expired(t *testing.T) {
	token, err := jwtService.GenerateSessionToken(sessionID, issuedAt, expiresAt)
	require.NoError(t, err)

	got, err := jwtService.ValidateSessionToken(token, expiresAt.Add(time.Second))
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, sessionID, got)

	var de *dErrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "invalid or expired session token", de.Message)
}

func Test_ValidateSessionToken_ExpiredOnlyWhenOtherwiseValid(t *testing.T) {
	expired := issuedAt.Add(-time.Hour)
	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong key",
			token: mustToken(t, NewJWTService("other-key"), expired),
		},
		{
			name: "wrong issuer",
			token: signClaims(t, jwt.SigningMethodHS256, SessionClaims{
				SessionID: sessionID.String(),
				Type:      TypeTemporarySession,
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    "someone-else",
					ExpiresAt: jwt.NewNumericDate(expired),
				},
			}),
		},
		{
			name: "wrong type",
			token: signClaims(t, jwt.SigningMethodHS256, SessionClaims{
				SessionID: sessionID.String(),
				Type:      "access",
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    defaultIssuer,
					ExpiresAt: jwt.NewNumericDate(expired),
				},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jwtService.ValidateSessionToken(tt.token, issuedAt)
			require.ErrorIs(t, err, ErrInvalidToken)
			assert.NotErrorIs(t, err, ErrExpiredToken)
			assert.True(t, got.IsNil())
		})
	}
}

func mustToken(t *testing.T, svc *JWTService, expiresAt time.Time) string {
	t.Helper()
	token, err := svc.GenerateSessionToken(sessionID, expiresAt.Add(-24*time.Hour), expiresAt)
	require.NoError(t, err)
	return token
}

func Test_ValidateSessionToken_WrongKey(t *testing.T) {
	token, err := NewJWTService("other-key").GenerateSessionToken(sessionID, issuedAt, expiresAt)
	require.NoError(t, err)

	_, err = jwtService.ValidateSessionToken(token, issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_ValidateSessionToken_Garbage(t *testing.T) {
	_, err := jwtService.ValidateSessionToken("invalid-token-string", issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_ValidateSessionToken_TamperedPayload(t *testing.T) {
	token, err := jwtService.GenerateSessionToken(sessionID, issuedAt, expiresAt)
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	other := id.SessionID(uuid.New())
	forged := strings.Replace(string(payload), sessionID.String(), other.String(), 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = jwtService.ValidateSessionToken(strings.Join(parts, "."), issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func signClaims(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func Test_ValidateSessionToken_RejectsOtherCredentialTypes(t *testing.T) {
	token := signClaims(t, jwt.SigningMethodHS256, SessionClaims{
		SessionID: sessionID.String(),
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	_, err := jwtService.ValidateSessionToken(token, issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_ValidateSessionToken_RequiresExpiry(t *testing.T) {
	token := signClaims(t, jwt.SigningMethodHS256, SessionClaims{
		SessionID:        sessionID.String(),
		Type:             TypeTemporarySession,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: defaultIssuer},
	})

	_, err := jwtService.ValidateSessionToken(token, issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_ValidateSessionToken_RejectsOtherAlgorithms(t *testing.T) {
	token := signClaims(t, jwt.SigningMethodHS512, SessionClaims{
		SessionID: sessionID.String(),
		Type:      TypeTemporarySession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	_, err := jwtService.ValidateSessionToken(token, issuedAt)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func Test_GenerateSessionToken_RequiresSessionID(t *testing.T) {
	_, err := jwtService.GenerateSessionToken(id.SessionID{}, issuedAt, expiresAt)
	require.Error(t, err)
}
