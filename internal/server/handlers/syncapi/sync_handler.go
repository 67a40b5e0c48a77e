package syncapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelfsync/shelfsync/internal/server/handlers/api"
	"github.com/shelfsync/shelfsync/internal/server/middlewares"
	"github.com/shelfsync/shelfsync/internal/server/syncer"
)

type SyncHandler struct {
	svc *syncer.Service
}

func New(svc *syncer.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Full handles POST /sync/full.
func (h *SyncHandler) Full(ctx *gin.Context) {
	h.run(ctx, h.svc.FullSync)
}

// Incremental handles POST /sync/incremental.
func (h *SyncHandler) Incremental(ctx *gin.Context) {
	h.run(ctx, h.svc.IncrementalSync)
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(ctx *gin.Context) {
	status, err := h.svc.Status(ctx.Request.Context(), middlewares.UserID(ctx))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, status)
}

type syncFunc func(context.Context, string, *syncer.Request) (*syncer.Response, error)

func (h *SyncHandler) run(ctx *gin.Context, fn syncFunc) {
	var req syncer.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("%w: %w", syncer.ErrInvalidRequest, err))
		return
	}

	// a device-bound token may only sync as that device
	if device := middlewares.DeviceID(ctx); device != "" && device != req.DeviceID {
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeAccessDenied,
			fmt.Errorf("deviceId %q does not match access token", req.DeviceID))
		return
	}

	res, err := fn(ctx.Request.Context(), middlewares.UserID(ctx), &req)
	if err != nil {
		if errors.Is(err, syncer.ErrInvalidRequest) {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeSyncFailed, err)
		return
	}

	ctx.PureJSON(http.StatusOK, res)
}
