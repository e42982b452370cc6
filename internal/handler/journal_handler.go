package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type journalReader interface {
	List(ctx context.Context, session *models.Session, query dto.JournalQuery) ([]models.JournalEntry, error)
}

// JournalHandler lists workflow journal entries.
type JournalHandler struct {
	service journalReader
}

// NewJournalHandler constructs the handler.
func NewJournalHandler(service journalReader) *JournalHandler {
	return &JournalHandler{service: service}
}

// List godoc
// @Summary Workflow journal
// @Tags Journal
// @Produce json
// @Param entity query string false "MISSION, ASSIGNMENT, CONVERSATION or SESSION"
// @Param entityId query string false "Entity ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /journal [get]
func (h *JournalHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var query dto.JournalQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid journal query"))
		return
	}
	entries, err := h.service.List(c.Request.Context(), session, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}
