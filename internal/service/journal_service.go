package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/jobs"
)

// journalRecorder receives workflow actions. Implementations must not block or fail the caller.
type journalRecorder interface {
	Record(ctx context.Context, session *models.Session, action, entity, entityID string, outcome models.JournalOutcome, detail map[string]interface{})
}

type noopJournal struct{}

func (noopJournal) Record(context.Context, *models.Session, string, string, string, models.JournalOutcome, map[string]interface{}) {
}

type journalStore interface {
	Insert(ctx context.Context, entry *models.JournalEntry) error
	List(ctx context.Context, filter models.JournalFilter) ([]models.JournalEntry, error)
}

// JournalServiceConfig tunes the background writer.
type JournalServiceConfig struct {
	Workers      int
	Retries      int
	RetryDelay   time.Duration
	WriteTimeout time.Duration
}

// JournalService records workflow actions asynchronously through a worker queue.
type JournalService struct {
	repo      journalStore
	queue     *jobs.Queue[models.JournalEntry]
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewJournalService constructs the service and its queue. Call Start before recording.
func NewJournalService(repo journalStore, metrics *MetricsService, cfg JournalServiceConfig, validate *validator.Validate, logger *zap.Logger) *JournalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	svc := &JournalService{
		repo:      repo,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		timeout:   cfg.WriteTimeout,
		now:       time.Now,
	}
	svc.queue = jobs.NewQueue[models.JournalEntry]("workflow-journal", svc.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the writers. A nil service stands for a disabled journal.
func (s *JournalService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop halts the writers.
func (s *JournalService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Record enqueues a journal entry for the session's user.
func (s *JournalService) Record(ctx context.Context, session *models.Session, action, entity, entityID string, outcome models.JournalOutcome, detail map[string]interface{}) {
	if s == nil {
		return
	}
	entry := models.JournalEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Entity:    entity,
		Outcome:   outcome,
		CreatedAt: s.now().UTC(),
	}
	if session != nil {
		entry.InstitutionID = session.InstitutionID
		entry.UserID = session.UserID
		entry.Role = session.Role
	}
	if entityID != "" {
		entry.EntityID = &entityID
	}
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			s.logger.Warn("journal detail not encodable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Detail = raw
		}
	}
	if err := s.queue.Submit(entry); err != nil {
		s.metrics.RecordJournalWrite(false)
		s.logger.Warn("journal entry dropped", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}

func (s *JournalService) persist(ctx context.Context, entry models.JournalEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.repo.Insert(ctx, &entry)
	s.metrics.RecordJournalWrite(err == nil)
	return err
}

// List returns journal entries visible to the session. Staff only see their institution.
func (s *JournalService) List(ctx context.Context, session *models.Session, query dto.JournalQuery) ([]models.JournalEntry, error) {
	if s == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "journal is disabled")
	}
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid journal query")
	}
	filter := models.JournalFilter{Entity: query.Entity, EntityID: query.EntityID, Limit: query.Limit}
	switch session.Role {
	case models.RoleAdmin:
	case models.RoleTeacher, models.RoleInstitution:
		if err := requireInstitution(session); err != nil {
			return nil, err
		}
		filter.InstitutionID = session.InstitutionID
	default:
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list journal")
	}
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	return entries, nil
}
