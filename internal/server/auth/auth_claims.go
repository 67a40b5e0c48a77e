package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type AuthTokenType string

const (
	AccessToken  AuthTokenType = "access"
	RefreshToken AuthTokenType = "refresh"
)

// Claims mirrors the tokens issued by the identity service. Subject is the
// user id.
type Claims struct {
	Type      AuthTokenType `json:"type"`
	Email     string        `json:"email,omitempty"`
	DeviceID  string        `json:"deviceId,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	jwt.RegisteredClaims
}

func ParseClaims(tokenString, jwtSecret string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, opts...)

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
