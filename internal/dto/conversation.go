package dto

import "github.com/noah-isme/mission-gateway/internal/models"

// RenameConversationRequest renames a conversation. A blank name is ignored.
type RenameConversationRequest struct {
	Name string `json:"nombre" validate:"max=120"`
}

// SendMessageRequest posts a user message to the tutor.
type SendMessageRequest struct {
	Content string `json:"contenido" validate:"max=4000"`
}

// ActivateConversationRequest points the session at an existing conversation.
type ActivateConversationRequest struct {
	ConversationID int64 `json:"idConversacion" validate:"required,gt=0"`
}

// ActiveConversationResponse describes the session's current conversation.
type ActiveConversationResponse struct {
	Conversation *models.Conversation   `json:"conversation"`
	Timeline     []models.TimelineEntry `json:"timeline"`
}

// DeleteConversationResponse reports where the session points after a delete.
type DeleteConversationResponse struct {
	DeletedID int64                `json:"deletedId"`
	Active    *models.Conversation `json:"active,omitempty"`
}
