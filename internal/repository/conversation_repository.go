package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
)

// ConversationRepository manages tutoring conversations and their messages on the platform.
type ConversationRepository struct {
	client *platform.Client
}

// NewConversationRepository constructs the repository.
func NewConversationRepository(client *platform.Client) *ConversationRepository {
	return &ConversationRepository{client: client}
}

// ListByUser returns the user's conversations in platform order.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query := url.Values{"idUsuario": {strconv.FormatInt(userID, 10)}}
	var conversations []models.Conversation
	if err := r.client.Get(ctx, "conversation.list", "/conversacion/listar-segun-usuario", query, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Create registers a conversation.
func (r *ConversationRepository) Create(ctx context.Context, req models.CreateConversation) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.client.Post(ctx, "conversation.create", "/conversacion/registrar", req, &conversation); err != nil {
		return nil, err
	}
	if conversation.ID == 0 {
		return nil, fmt.Errorf("conversation.create: platform returned no id")
	}
	if conversation.Name == "" {
		conversation.Name = req.Name
	}
	if conversation.UserID == 0 {
		conversation.UserID = req.UserID
	}
	return &conversation, nil
}

// Rename changes a conversation's display name.
func (r *ConversationRepository) Rename(ctx context.Context, id int64, req models.RenameConversation) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.client.Put(ctx, "conversation.rename", fmt.Sprintf("/conversacion/actualizar/%d", id), req, &conversation); err != nil {
		return nil, err
	}
	if conversation.ID == 0 {
		return nil, nil
	}
	return &conversation, nil
}

// Delete removes a conversation.
func (r *ConversationRepository) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, "conversation.delete", fmt.Sprintf("/conversacion/eliminar/%d", id))
}

// Messages lists a conversation's messages in platform order.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := url.Values{"idConversacion": {strconv.FormatInt(conversationID, 10)}}
	var messages []models.Message
	if err := r.client.Get(ctx, "message.list", "/mensaje/listar-segun-conversacion", query, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendToAgent posts a user message and returns the agent replies, possibly none.
func (r *ConversationRepository) SendToAgent(ctx context.Context, req models.SendMessage) ([]models.Message, error) {
	var replies []models.Message
	if err := r.client.Post(ctx, "message.send", "/mensaje/enviar-chatbot", req, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}
