package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

const defaultConversationName = "Tutoría Personalizada"

type conversationStore interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	Create(ctx context.Context, req models.CreateConversation) (*models.Conversation, error)
	Rename(ctx context.Context, id int64, req models.RenameConversation) (*models.Conversation, error)
	Delete(ctx context.Context, id int64) error
	Messages(ctx context.Context, conversationID int64) ([]models.Message, error)
	SendToAgent(ctx context.Context, req models.SendMessage) ([]models.Message, error)
}

// ConversationServiceConfig controls naming and the degraded create mode.
type ConversationServiceConfig struct {
	DefaultName    string
	CreateFallback bool
	FallbackID     int64
}

// ConversationService manages a session's tutoring conversations and chat timeline.
type ConversationService struct {
	repo      conversationStore
	states    *SessionStateRegistry
	journal   journalRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ConversationServiceConfig
	now       func() time.Time
}

// NewConversationService constructs the service.
func NewConversationService(repo conversationStore, states *SessionStateRegistry, journal journalRecorder, cfg ConversationServiceConfig, validate *validator.Validate, logger *zap.Logger) *ConversationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = noopJournal{}
	}
	if strings.TrimSpace(cfg.DefaultName) == "" {
		cfg.DefaultName = defaultConversationName
	}
	if cfg.FallbackID <= 0 {
		cfg.FallbackID = 1
	}
	return &ConversationService{
		repo:      repo,
		states:    states,
		journal:   journal,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// List returns the user's conversations, most recent first. A platform failure yields an
// empty list.
func (s *ConversationService) List(ctx context.Context, session *models.Session) ([]models.Conversation, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	conversations, err := s.repo.ListByUser(ctx, session.UserID)
	if err != nil {
		s.logger.Warn("conversation list failed", zap.Int64("user_id", session.UserID), zap.Error(err))
		return []models.Conversation{}, nil
	}
	return SortConversations(conversations), nil
}

// Create registers a conversation with the default name and makes it active. When the
// platform fails and the fallback is enabled, a degraded conversation with the fallback id
// is activated instead.
func (s *ConversationService) Create(ctx context.Context, session *models.Session) (*models.Conversation, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req := models.CreateConversation{UserID: session.UserID, Name: s.cfg.DefaultName}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversation payload")
	}

	conversation, err := s.repo.Create(ctx, req)
	if err != nil {
		if !s.cfg.CreateFallback {
			s.record(ctx, session, models.JournalActionConversationCreate, 0, models.JournalFailed, map[string]interface{}{"error": err.Error()})
			return nil, upstreamOr(err, "failed to create conversation")
		}
		s.logger.Warn("conversation create failed, using fallback", zap.Int64("fallback_id", s.cfg.FallbackID), zap.Error(err))
		conversation = &models.Conversation{
			ID:        s.cfg.FallbackID,
			Name:      req.Name,
			UserID:    session.UserID,
			CreatedAt: models.NewTimestamp(s.now().UTC()),
			Degraded:  true,
		}
		s.record(ctx, session, models.JournalActionConversationCreate, conversation.ID, models.JournalFailed, map[string]interface{}{"error": err.Error(), "fallback": true})
	} else {
		s.record(ctx, session, models.JournalActionConversationCreate, conversation.ID, models.JournalSuccess, nil)
	}

	s.states.For(session.ID).Activate(*conversation)
	return conversation, nil
}

// Activate points the session at one of the user's existing conversations.
func (s *ConversationService) Activate(ctx context.Context, session *models.Session, req dto.ActivateConversationRequest) (*models.Conversation, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversation id")
	}
	state := s.states.For(session.ID)
	if active := state.Active(); active != nil && active.ID == req.ConversationID {
		return active, nil
	}
	conversation, err := s.ownedConversation(ctx, session, req.ConversationID)
	if err != nil {
		return nil, err
	}
	state.Activate(*conversation)
	return conversation, nil
}

// ownedConversation resolves id among the session user's conversations. The active
// conversation was created or activated for this user and needs no lookup. Ids the
// user does not own are reported as stale, the same as deleted ones.
func (s *ConversationService) ownedConversation(ctx context.Context, session *models.Session, id int64) (*models.Conversation, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "conversation id is required")
	}
	if active := s.states.For(session.ID).Active(); active != nil && active.ID == id {
		return active, nil
	}
	conversations, err := s.repo.ListByUser(ctx, session.UserID)
	if err != nil {
		return nil, upstreamOr(err, "failed to load conversations")
	}
	for _, conversation := range conversations {
		if conversation.ID == id {
			return &conversation, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrStaleReference, "conversation no longer exists")
}

// Active returns the session's active conversation and its timeline.
func (s *ConversationService) Active(session *models.Session) (*dto.ActiveConversationResponse, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	state := s.states.For(session.ID)
	return &dto.ActiveConversationResponse{Conversation: state.Active(), Timeline: state.Timeline()}, nil
}

// Rename changes a conversation's name. A blank name changes nothing and returns nil.
func (s *ConversationService) Rename(ctx context.Context, session *models.Session, id int64, req dto.RenameConversationRequest) (*models.Conversation, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil
	}
	payload := models.RenameConversation{Name: name}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversation name")
	}
	if _, err := s.ownedConversation(ctx, session, id); err != nil {
		s.record(ctx, session, models.JournalActionConversationRename, id, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	updated, err := s.repo.Rename(ctx, id, payload)
	if err != nil {
		err = staleConversationOr(err, "failed to rename conversation")
		s.record(ctx, session, models.JournalActionConversationRename, id, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if updated == nil {
		updated = &models.Conversation{ID: id, Name: name, UserID: session.UserID}
	}
	s.states.For(session.ID).Rename(id, updated.Name)
	s.record(ctx, session, models.JournalActionConversationRename, id, models.JournalSuccess, map[string]interface{}{"nombre": updated.Name})
	return updated, nil
}

// Delete removes a conversation. Deleting the active conversation activates a freshly
// created one; the session never stays pointed at the deleted id.
func (s *ConversationService) Delete(ctx context.Context, session *models.Session, id int64) (*dto.DeleteConversationResponse, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	outcome := models.JournalSuccess
	_, err := s.ownedConversation(ctx, session, id)
	switch {
	case errors.Is(err, appErrors.ErrStaleReference):
		// Already gone or never the user's: nothing is sent to the platform.
		outcome = models.JournalNoop
	case err != nil:
		s.record(ctx, session, models.JournalActionConversationDelete, id, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	default:
		if err := s.repo.Delete(ctx, id); err != nil {
			if !platform.IsNotFound(err) {
				s.record(ctx, session, models.JournalActionConversationDelete, id, models.JournalFailed, map[string]interface{}{"error": err.Error()})
				return nil, upstreamOr(err, "failed to delete conversation")
			}
			outcome = models.JournalNoop
		}
	}
	s.record(ctx, session, models.JournalActionConversationDelete, id, outcome, nil)

	state := s.states.For(session.ID)
	resp := &dto.DeleteConversationResponse{DeletedID: id}
	if !state.Deactivate(id) {
		resp.Active = state.Active()
		return resp, nil
	}

	replacement, err := s.Create(ctx, session)
	if err != nil {
		s.logger.Warn("replacement conversation not created", zap.Int64("deleted_id", id), zap.Error(err))
		return resp, nil
	}
	if replacement.ID == id {
		state.Deactivate(id)
		return resp, nil
	}
	resp.Active = replacement
	return resp, nil
}

// History returns the conversation's messages in ascending creation order. A platform
// failure yields an empty history; a conversation the user does not own is stale. The
// result replaces the session timeline only if no newer load or conversation switch
// happened meanwhile.
func (s *ConversationService) History(ctx context.Context, session *models.Session, id int64) ([]models.Message, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.ownedConversation(ctx, session, id); err != nil {
		if errors.Is(err, appErrors.ErrStaleReference) || errors.Is(err, appErrors.ErrValidation) {
			return nil, err
		}
		s.logger.Warn("conversation owner lookup failed", zap.Int64("conversation_id", id), zap.Error(err))
		return []models.Message{}, nil
	}
	state := s.states.For(session.ID)
	ticket := state.Begin()

	messages, err := s.repo.Messages(ctx, id)
	if err != nil {
		s.logger.Warn("conversation history failed", zap.Int64("conversation_id", id), zap.Error(err))
		return []models.Message{}, nil
	}
	sorted := SortMessages(messages)
	if ctx.Err() == nil && !state.Reconcile(ticket, id, sorted) {
		s.logger.Debug("history load not committed", zap.Int64("conversation_id", id))
	}
	return sorted, nil
}

// SendMessage appends the user's message to the timeline, asks the tutor and appends its
// first reply. Blank content does nothing and returns nil. A failed call leaves the user
// message marked FAILED and returns the result alongside the error.
func (s *ConversationService) SendMessage(ctx context.Context, session *models.Session, id int64, req dto.SendMessageRequest) (*models.SendResult, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, nil
	}
	payload := models.SendMessage{ConversationID: id, Content: content}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message")
	}
	if _, err := s.ownedConversation(ctx, session, id); err != nil {
		return nil, err
	}

	state := s.states.For(session.ID)
	localID := s.states.NextLocalID()
	userEntry := models.TimelineEntry{
		Ref:       models.PendingRef(localID),
		Kind:      models.MessageKindUser,
		Content:   content,
		CreatedAt: s.now().UTC(),
		State:     models.DeliveryPending,
	}
	state.Append(id, userEntry)

	replies, err := s.repo.SendToAgent(ctx, payload)
	if err != nil {
		state.Mark(localID, models.DeliveryFailed)
		userEntry.State = models.DeliveryFailed
		s.logger.Warn("message not delivered", zap.Int64("conversation_id", id), zap.String("local_id", localID), zap.Error(err))
		return &models.SendResult{Outcome: models.SendFailed, UserMessage: userEntry}, upstreamOr(err, "failed to send message")
	}

	state.Mark(localID, models.DeliveryDelivered)
	userEntry.State = models.DeliveryDelivered
	if len(replies) == 0 {
		return &models.SendResult{Outcome: models.SendEmptyReply, UserMessage: userEntry}, nil
	}

	reply := confirmedEntry(replies[0])
	if reply.Kind == "" {
		reply.Kind = models.MessageKindAgent
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = s.now().UTC()
	}
	state.Append(id, reply)
	return &models.SendResult{Outcome: models.SendReplied, UserMessage: userEntry, Reply: &reply}, nil
}

func (s *ConversationService) record(ctx context.Context, session *models.Session, action string, id int64, outcome models.JournalOutcome, detail map[string]interface{}) {
	entityID := ""
	if id > 0 {
		entityID = strconv.FormatInt(id, 10)
	}
	s.journal.Record(ctx, session, action, models.JournalEntityConversation, entityID, outcome, detail)
}

// upstreamOr keeps typed platform errors and wraps anything else as an upstream failure.
func upstreamOr(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
}

func staleConversationOr(err error, message string) error {
	if platform.IsNotFound(err) {
		return appErrors.Wrap(err, appErrors.ErrStaleReference.Code, appErrors.ErrStaleReference.Status, "conversation no longer exists")
	}
	return upstreamOr(err, message)
}
