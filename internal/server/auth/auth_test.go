package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestAuthConfig() *Config {
	return &Config{
		Enabled:           true,
		TokenIssuer:       "https://id.shelfsync.dev",
		AccessTokenSecret: "access-secret-0123456789",
		AccessTokenExpiry: time.Minute,
	}
}

func TestAuthService_IsEnabled(t *testing.T) {
	cfg := getTestAuthConfig()
	assert.True(t, NewAuthService(cfg).IsEnabled())

	cfg.Enabled = false
	assert.False(t, NewAuthService(cfg).IsEnabled())
}

func TestAuthService_ValidateAccessToken(t *testing.T) {
	cfg := getTestAuthConfig()
	svc := NewAuthService(cfg)

	token, err := svc.IssueAccessToken("user-1", TokenOptions{DeviceID: "phone", Email: "a@b.c"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "phone", claims.DeviceID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, AccessToken, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthService_ValidateAccessToken_Rejects(t *testing.T) {
	cfg := getTestAuthConfig()
	svc := NewAuthService(cfg)

	refresh, err := NewToken("user-1", cfg.TokenIssuer, cfg.AccessTokenSecret, time.Minute, RefreshToken, TokenOptions{})
	require.NoError(t, err)
	wrongSecret, err := NewToken("user-1", cfg.TokenIssuer, "another-secret-0123456789", time.Minute, AccessToken, TokenOptions{})
	require.NoError(t, err)
	wrongIssuer, err := NewToken("user-1", "https://evil.example", cfg.AccessTokenSecret, time.Minute, AccessToken, TokenOptions{})
	require.NoError(t, err)
	expired, err := NewToken("user-1", cfg.TokenIssuer, cfg.AccessTokenSecret, -time.Minute, AccessToken, TokenOptions{})
	require.NoError(t, err)
	noSubject, err := NewToken("", cfg.TokenIssuer, cfg.AccessTokenSecret, time.Minute, AccessToken, TokenOptions{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"refresh token", refresh},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"expired", expired},
		{"no subject", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidAccessToken)
		})
	}
}

func TestNewToken_NoExpiry(t *testing.T) {
	token, err := NewToken("user-1", "", "secret", 0, AccessToken, TokenOptions{})
	require.NoError(t, err)

	claims, err := ParseClaims(token, "secret")
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseClaims_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		Type:             AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseClaims(token, "secret")
	assert.Error(t, err)
}

func TestIssueAccessToken_RequiresUser(t *testing.T) {
	_, err := NewAuthService(getTestAuthConfig()).IssueAccessToken("", TokenOptions{})
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled needs nothing", Config{}, false},
		{"enabled ok", *getTestAuthConfig(), false},
		{"enabled missing secret", Config{Enabled: true}, true},
		{"enabled short secret", Config{Enabled: true, AccessTokenSecret: "short"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
