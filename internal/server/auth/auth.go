// Package auth validates access tokens minted by the identity service. Tokens
// are HS256 JWTs whose subject is the user id.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	var opts []jwt.ParserOption
	if s.config.TokenIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.TokenIssuer))
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}

	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidAccessToken, claims.Type)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, ErrMissingSubject)
	}

	return claims, nil
}

// IssueAccessToken mints an access token signed with the configured secret.
func (s *AuthService) IssueAccessToken(userID string, opts TokenOptions) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}
	return NewAccessToken(userID, s.config, opts)
}
