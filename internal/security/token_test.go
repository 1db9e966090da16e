package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestRoundTrip(t *testing.T) {
	m := NewTokenManager(secret, "rentwy")
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)

	got, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestExpiredToken(t *testing.T) {
	m := NewTokenManager(secret, "")
	token, err := m.GenerateAccessToken(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRejectedTokens(t *testing.T) {
	m := NewTokenManager(secret, "rentwy")

	other, err := NewTokenManager("ffffffffffffffffffffffffffffffff", "rentwy").GenerateAccessToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewTokenManager(secret, "someone-else").GenerateAccessToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "rentwy",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: uuid.New().String(),
		Issuer:  "rentwy",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  other,
		"wrong issuer":  wrongIssuer,
		"non-uuid user": badSubject,
		"no expiry":     noExpiry,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
