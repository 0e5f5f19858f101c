package auth

import (
	"testing"
	"time"

	"salonshop/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "salonshop",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "admin@example.com", "ADMIN")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 1, "a@b.c", "CUSTOMER")
	require.NoError(t, err)

	other := testJWTConfig()
	other.AccessSecret = "nope"
	_, err = ParseAccessToken(other, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	refresh, err := GenerateRefreshToken(cfg, 9)
	require.NoError(t, err)

	id, err := ParseRefreshToken(cfg, refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(9), id)

	_, err = ParseAccessToken(cfg, refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
