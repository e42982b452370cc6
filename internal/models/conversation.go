package models

import (
	"encoding/json"
	"time"
)

// Conversation is a tutoring chat session owned by one user.
type Conversation struct {
	ID        int64      `json:"idConversacion"`
	Name      string     `json:"nombre"`
	UserID    int64      `json:"idUsuario"`
	CreatedAt *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
	Degraded  bool       `json:"degraded,omitempty"`
}

// CreateConversation is the platform payload registering a conversation.
type CreateConversation struct {
	UserID int64  `json:"idUsuario" validate:"required,gt=0"`
	Name   string `json:"nombre" validate:"required,max=120"`
}

// RenameConversation is the platform payload renaming a conversation.
type RenameConversation struct {
	Name string `json:"nombre" validate:"required,max=120"`
}

// MessageKind identifies the author of a chat message.
type MessageKind string

// Message authors.
const (
	MessageKindUser  MessageKind = "USUARIO"
	MessageKindAgent MessageKind = "AGENTE"
)

// Message is a chat message as stored by the platform.
type Message struct {
	ID             int64       `json:"idMensaje"`
	ConversationID int64       `json:"idConversacion,omitempty"`
	Kind           MessageKind `json:"tipo"`
	Content        string      `json:"contenido"`
	CreatedAt      *Timestamp  `json:"createdAt,omitempty"`
}

// SendMessage is the platform payload for the combined send and reply call.
type SendMessage struct {
	ConversationID int64  `json:"idConversacion" validate:"required"`
	Content        string `json:"contenido" validate:"required,max=4000"`
}

// MessageRef identifies a timeline entry either by a local token while the
// platform has not acknowledged it, or by the platform id once it has.
type MessageRef struct {
	localID  string
	serverID int64
}

// PendingRef builds a reference for a message not yet known to the platform.
func PendingRef(localID string) MessageRef {
	return MessageRef{localID: localID}
}

// ConfirmedRef builds a reference for a platform-stored message.
func ConfirmedRef(serverID int64) MessageRef {
	return MessageRef{serverID: serverID}
}

// Pending reports whether the reference still carries a local token.
func (r MessageRef) Pending() bool {
	return r.localID != ""
}

// LocalID returns the local token, empty once confirmed.
func (r MessageRef) LocalID() string {
	return r.localID
}

// ServerID returns the platform id, zero while pending.
func (r MessageRef) ServerID() int64 {
	return r.serverID
}

type messageRefJSON struct {
	Kind     string `json:"kind"`
	LocalID  string `json:"localId,omitempty"`
	ServerID int64  `json:"serverId,omitempty"`
}

// MarshalJSON renders the reference as a tagged object.
func (r MessageRef) MarshalJSON() ([]byte, error) {
	if r.Pending() {
		return json.Marshal(messageRefJSON{Kind: "pending", LocalID: r.localID})
	}
	return json.Marshal(messageRefJSON{Kind: "confirmed", ServerID: r.serverID})
}

// DeliveryState tracks a timeline entry through sending and reconciliation.
type DeliveryState string

// Delivery states.
const (
	DeliveryPending   DeliveryState = "PENDING"
	DeliveryDelivered DeliveryState = "DELIVERED"
	DeliveryFailed    DeliveryState = "FAILED"
	DeliveryConfirmed DeliveryState = "CONFIRMED"
)

// TimelineEntry is a message as presented in a session's chat timeline.
type TimelineEntry struct {
	Ref       MessageRef    `json:"ref"`
	Kind      MessageKind   `json:"tipo"`
	Content   string        `json:"contenido"`
	CreatedAt time.Time     `json:"createdAt"`
	State     DeliveryState `json:"state"`
}

// SendOutcome distinguishes a reply, a successful call without reply and a failure.
type SendOutcome string

// Send outcomes.
const (
	SendReplied    SendOutcome = "REPLIED"
	SendEmptyReply SendOutcome = "EMPTY_REPLY"
	SendFailed     SendOutcome = "FAILED"
)

// SendResult reports what happened to a sent message.
type SendResult struct {
	Outcome     SendOutcome    `json:"outcome"`
	UserMessage TimelineEntry  `json:"userMessage"`
	Reply       *TimelineEntry `json:"reply,omitempty"`
}
