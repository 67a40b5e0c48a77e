package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelfsync/shelfsync/internal/server/handlers/api"
	"github.com/shelfsync/shelfsync/internal/server/middlewares"
	"github.com/shelfsync/shelfsync/internal/server/storage"
)

type StorageHandler struct {
	svc *storage.Service
}

func New(svc *storage.Service) *StorageHandler {
	return &StorageHandler{svc: svc}
}

// UploadURL handles POST /storage/upload-url.
func (h *StorageHandler) UploadURL(ctx *gin.Context) {
	var req storage.UploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	res, err := h.svc.CreateUploadURL(ctx.Request.Context(), middlewares.UserID(ctx), &req)
	if err != nil {
		abortWithStorageError(ctx, api.CodeStoragePresignFailed, err)
		return
	}
	ctx.PureJSON(http.StatusOK, res)
}

// DeleteObject handles DELETE /storage/object?key=.
func (h *StorageHandler) DeleteObject(ctx *gin.Context) {
	key := ctx.Query("key")
	if key == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, errors.New("key is required"))
		return
	}

	res, err := h.svc.DeleteObject(ctx.Request.Context(), middlewares.UserID(ctx), key)
	if err != nil {
		abortWithStorageError(ctx, api.CodeStorageDeleteFailed, err)
		return
	}
	ctx.PureJSON(http.StatusOK, res)
}

func abortWithStorageError(ctx *gin.Context, fallback string, err error) {
	switch {
	case errors.Is(err, storage.ErrDisabled):
		api.AbortWithError(ctx, http.StatusServiceUnavailable, api.CodeStorageDisabled, err)
	case errors.Is(err, storage.ErrForbiddenKey):
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeStorageForbiddenKey, err)
	case errors.Is(err, storage.ErrInvalidInput):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, fallback, err)
	}
}
