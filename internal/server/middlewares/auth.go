package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelfsync/shelfsync/internal/server/handlers/api"
)

const (
	UserContextKey   = "user"
	DeviceContextKey = "device"

	userIDHeader = "X-User-ID"
)

// HeaderIdentity trusts the X-User-ID header. Only for deployments where
// authentication is disabled.
func HeaderIdentity() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := ctx.GetHeader(userIDHeader)

		if user == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.APIError{
				Code:    api.CodeAuthInvalidCredentials,
				Message: "header 'X-User-ID' is required",
			})
			return
		}

		ctx.Set(UserContextKey, user)
		ctx.Next()
	}
}

// UserID returns the authenticated user id set by JWTAuth or HeaderIdentity.
func UserID(ctx *gin.Context) string {
	return ctx.GetString(UserContextKey)
}

// DeviceID returns the device id claim of the access token, if any.
func DeviceID(ctx *gin.Context) string {
	return ctx.GetString(DeviceContextKey)
}
