package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shelfsync/shelfsync/internal/server/auth"
	"github.com/shelfsync/shelfsync/internal/server/handlers/api"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"
)

// JWTAuth validates the bearer access token and stores the user id (token
// subject) and device id claim in the gin context. When auth is disabled the
// identity is taken from the X-User-ID header instead.
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Warn("auth middleware disabled, trusting X-User-ID header")
		return HeaderIdentity()
	}
	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		authHeaderValue := ctx.GetHeader(authHeader)
		if authHeaderValue == "" {
			abortUnauthorized(ctx, "Authorization header is missing")
			return
		}

		if !strings.HasPrefix(authHeaderValue, bearerPrefix) {
			abortUnauthorized(ctx, "Authorization header format must be Bearer {token}")
			return
		}

		tokenString := strings.TrimPrefix(authHeaderValue, bearerPrefix)
		if tokenString == "" {
			abortUnauthorized(ctx, "Token is missing")
			return
		}

		claims, err := authService.ValidateAccessToken(ctx, tokenString)
		if err != nil {
			abortUnauthorized(ctx, err.Error())
			return
		}

		ctx.Set(UserContextKey, claims.Subject)
		if claims.DeviceID != "" {
			ctx.Set(DeviceContextKey, claims.DeviceID)
		}

		ctx.Next()
	}
}

func abortUnauthorized(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.APIError{
		Code:    api.CodeAuthInvalidCredentials,
		Message: msg,
	})
}
