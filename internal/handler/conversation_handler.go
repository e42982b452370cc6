package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type conversationService interface {
	List(ctx context.Context, session *models.Session) ([]models.Conversation, error)
	Create(ctx context.Context, session *models.Session) (*models.Conversation, error)
	Activate(ctx context.Context, session *models.Session, req dto.ActivateConversationRequest) (*models.Conversation, error)
	Active(session *models.Session) (*dto.ActiveConversationResponse, error)
	Rename(ctx context.Context, session *models.Session, id int64, req dto.RenameConversationRequest) (*models.Conversation, error)
	Delete(ctx context.Context, session *models.Session, id int64) (*dto.DeleteConversationResponse, error)
	History(ctx context.Context, session *models.Session, id int64) ([]models.Message, error)
	SendMessage(ctx context.Context, session *models.Session, id int64, req dto.SendMessageRequest) (*models.SendResult, error)
}

// ConversationHandler exposes the tutoring conversation endpoints.
type ConversationHandler struct {
	service conversationService
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service conversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List godoc
// @Summary List conversations, most recent first
// @Tags Conversations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	conversations, err := h.service.List(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, conversations)
}

// Create godoc
// @Summary Start a conversation and make it active
// @Tags Conversations
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	conversation, err := h.service.Create(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, conversation)
}

// Active godoc
// @Summary Active conversation and its timeline
// @Tags Conversations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conversations/active [get]
func (h *ConversationHandler) Active(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	active, err := h.service.Active(session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, active)
}

// Activate godoc
// @Summary Switch the active conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param payload body dto.ActivateConversationRequest true "Conversation"
// @Success 200 {object} response.Envelope
// @Router /conversations/active [put]
func (h *ConversationHandler) Activate(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var req dto.ActivateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid conversation payload"))
		return
	}
	conversation, err := h.service.Activate(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, conversation)
}

// Rename godoc
// @Summary Rename a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param payload body dto.RenameConversationRequest true "New name"
// @Success 200 {object} response.Envelope
// @Success 204 "blank name, nothing sent"
// @Router /conversations/{id} [put]
func (h *ConversationHandler) Rename(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rename payload"))
		return
	}
	conversation, err := h.service.Rename(c.Request.Context(), session, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if conversation == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, conversation)
}

// Delete godoc
// @Summary Delete a conversation
// @Tags Conversations
// @Produce json
// @Param id path int true "Conversation ID"
// @Success 200 {object} response.Envelope
// @Router /conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.service.Delete(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// History godoc
// @Summary Conversation messages in chronological order
// @Tags Conversations
// @Produce json
// @Param id path int true "Conversation ID"
// @Success 200 {object} response.Envelope
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) History(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	messages, err := h.service.History(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, messages)
}

// Send godoc
// @Summary Send a message to the tutor
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 200 {object} response.Envelope
// @Success 204 "blank content, nothing sent"
// @Failure 502 {object} response.Envelope
// @Router /conversations/{id}/messages [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid message payload"))
		return
	}
	result, err := h.service.SendMessage(c.Request.Context(), session, id, req)
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	if result == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, result)
}
