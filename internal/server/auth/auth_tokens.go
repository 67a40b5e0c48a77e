package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenOptions carries the optional claims of an issued token.
type TokenOptions struct {
	Email     string
	DeviceID  string
	SessionID string
}

func NewAccessToken(subject string, config *Config, opts TokenOptions) (string, error) {
	return NewToken(subject, config.TokenIssuer, config.AccessTokenSecret, config.AccessTokenExpiry, AccessToken, opts)
}

func NewToken(subject, issuer, jwtSecret string, expiry time.Duration, tokenType AuthTokenType, opts TokenOptions) (string, error) {
	var expiryTime *jwt.NumericDate

	if expiry != 0 {
		expiryTime = jwt.NewNumericDate(time.Now().Add(expiry))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Type:      tokenType,
		Email:     opts.Email,
		DeviceID:  opts.DeviceID,
		SessionID: opts.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
