package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelfsync/shelfsync/internal/server/handlers/api"
	"github.com/shelfsync/shelfsync/internal/server/handlers/storage"
	"github.com/shelfsync/shelfsync/internal/server/handlers/syncapi"
	"github.com/shelfsync/shelfsync/internal/server/middlewares"
	"github.com/shelfsync/shelfsync/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	syncH := syncapi.New(svc.Sync)
	storageH := storage.New(svc.Storage)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	if config.HTTP.RateLimit != "" {
		limit, err := middlewares.RateLimiter(config.HTTP.RateLimit)
		if err != nil {
			return nil, err
		}
		v1.Use(limit)
	}
	v1.Use(middlewares.JWTAuth(svc.Auth))
	{
		// sync
		v1.POST("/sync/full", syncH.Full)
		v1.POST("/sync/incremental", syncH.Incremental)
		v1.GET("/sync/status", syncH.Status)

		// storage
		v1.POST("/storage/upload-url", storageH.UploadURL)
		v1.DELETE("/storage/object", storageH.DeleteObject)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{Code: api.CodeInvalidRequest, Message: "not found"})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{Code: api.CodeInvalidRequest, Message: "method not allowed"})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
