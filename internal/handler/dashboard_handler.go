package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type dashboardService interface {
	Get(ctx context.Context, session *models.Session) (*dto.DashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Get godoc
// @Summary Role-specific dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	session := requireSession(c)
	if session == nil {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Get(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.OK(c, summary, meta)
}
