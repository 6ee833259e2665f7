package auth

import (
	"testing"
	"time"

	"pastpapers/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "pastpapers",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "parent@example.com", "CUSTOMER")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "parent@example.com", claims.Email)
	assert.Equal(t, "CUSTOMER", claims.Role)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	cfg := testJWTConfig()
	pair, err := GeneratePair(cfg, 7, "a@b.co", "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	_, err = ParseAccessToken(cfg, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseRefreshToken(cfg, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	id, err := ParseRefreshToken(cfg, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	tok, err := GenerateAccessToken(cfg, 1, "a@b.co", "CUSTOMER")
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
