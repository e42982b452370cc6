package service

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type missionWriter interface {
	Update(ctx context.Context, id int64, update models.MissionUpdate) (*models.Mission, error)
	Delete(ctx context.Context, id int64) error
}

var missionTransitions = map[models.MissionStatus][]models.MissionStatus{
	models.MissionStatusInReview:   {models.MissionStatusOpen},
	models.MissionStatusOpen:       {models.MissionStatusInProgress, models.MissionStatusFinalized},
	models.MissionStatusInProgress: {models.MissionStatusFinalized},
	models.MissionStatusFinalized:  {},
}

// NextStates returns the statuses a mission may move to from current.
func NextStates(current models.MissionStatus) []models.MissionStatus {
	next := missionTransitions[current]
	out := make([]models.MissionStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is a lifecycle edge.
func CanTransition(from, to models.MissionStatus) bool {
	for _, status := range missionTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}

// RoleMayTransition reports whether role may trigger from -> to. Publication is a staff
// action; starting and closing a published mission belong to the institution.
func RoleMayTransition(role models.UserRole, from, to models.MissionStatus) bool {
	if !CanTransition(from, to) {
		return false
	}
	switch to {
	case models.MissionStatusOpen:
		return role == models.RoleTeacher || role == models.RoleInstitution
	case models.MissionStatusInProgress, models.MissionStatusFinalized:
		return role == models.RoleInstitution
	default:
		return false
	}
}

func isStaff(role models.UserRole) bool {
	return role == models.RoleTeacher || role == models.RoleInstitution
}

// AvailableActions lists what role may do with mission in its current status.
func AvailableActions(mission models.Mission, role models.UserRole) []models.MissionAction {
	actions := make([]models.MissionAction, 0, 3)
	switch mission.Status {
	case models.MissionStatusInReview:
		if isStaff(role) {
			actions = append(actions, models.MissionActionApprove, models.MissionActionEdit, models.MissionActionDiscard)
		}
	case models.MissionStatusOpen:
		if isStaff(role) || role == models.RoleStudent {
			actions = append(actions, models.MissionActionEnroll)
		}
		if RoleMayTransition(role, mission.Status, models.MissionStatusInProgress) {
			actions = append(actions, models.MissionActionStart)
		}
		if RoleMayTransition(role, mission.Status, models.MissionStatusFinalized) {
			actions = append(actions, models.MissionActionClose)
		}
	case models.MissionStatusInProgress:
		if RoleMayTransition(role, mission.Status, models.MissionStatusFinalized) {
			actions = append(actions, models.MissionActionClose)
		}
	}
	return actions
}

// MissionService is the mission lifecycle controller. It validates every status change
// against the transition table before calling the platform and never mutates cached state
// for a call that did not succeed.
type MissionService struct {
	store     *MissionStore
	repo      missionWriter
	journal   journalRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMissionService constructs the lifecycle controller.
func NewMissionService(store *MissionStore, repo missionWriter, journal journalRecorder, validate *validator.Validate, logger *zap.Logger) *MissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = noopJournal{}
	}
	return &MissionService{store: store, repo: repo, journal: journal, validator: validate, logger: logger}
}

// List returns the session institution's missions in status and whether the cache served them.
func (s *MissionService) List(ctx context.Context, session *models.Session, status models.MissionStatus) ([]models.Mission, bool, error) {
	if err := requireInstitution(session); err != nil {
		return nil, false, err
	}
	if status != "" && !status.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown mission status")
	}
	return s.store.List(ctx, session.InstitutionID, status)
}

// Actions describes the transitions and actions available on a mission.
func (s *MissionService) Actions(ctx context.Context, session *models.Session, missionID int64) (*dto.MissionActionsResponse, error) {
	if err := requireInstitution(session); err != nil {
		return nil, err
	}
	mission, err := s.store.Find(ctx, session.InstitutionID, missionID)
	if err != nil {
		return nil, err
	}
	next := make([]models.MissionStatus, 0, 2)
	for _, status := range NextStates(mission.Status) {
		if RoleMayTransition(session.Role, mission.Status, status) {
			next = append(next, status)
		}
	}
	return &dto.MissionActionsResponse{
		MissionID:  mission.ID,
		Status:     mission.Status,
		NextStates: next,
		Actions:    AvailableActions(*mission, session.Role),
	}, nil
}

// Approve publishes a mission under review.
func (s *MissionService) Approve(ctx context.Context, session *models.Session, missionID int64) (*models.Mission, error) {
	return s.transition(ctx, session, missionID, models.MissionStatusOpen, models.JournalActionApprove)
}

// Transition moves a mission to target after checking the lifecycle table and the caller's role.
func (s *MissionService) Transition(ctx context.Context, session *models.Session, missionID int64, req dto.TransitionMissionRequest) (*models.Mission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	return s.transition(ctx, session, missionID, req.Status, models.JournalActionTransition)
}

func (s *MissionService) transition(ctx context.Context, session *models.Session, missionID int64, target models.MissionStatus, action string) (*models.Mission, error) {
	if err := requireInstitution(session); err != nil {
		return nil, err
	}
	mission, err := s.store.Find(ctx, session.InstitutionID, missionID)
	if err != nil {
		s.record(ctx, session, action, missionID, models.JournalNoop, map[string]interface{}{"to": target, "reason": "stale"})
		return nil, err
	}
	from := mission.Status
	if !CanTransition(from, target) {
		s.record(ctx, session, action, missionID, models.JournalNoop, map[string]interface{}{"from": from, "to": target, "reason": "invalid_transition"})
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "mission cannot move from "+string(from)+" to "+string(target))
	}
	if !RoleMayTransition(session.Role, from, target) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not move mission to "+string(target))
	}

	updated, err := s.repo.Update(ctx, missionID, models.MissionUpdate{Status: &target})
	if err != nil {
		err = s.store.staleOr(ctx, session.InstitutionID, err)
		s.record(ctx, session, action, missionID, models.JournalFailed, map[string]interface{}{"from": from, "to": target, "error": err.Error()})
		s.logger.Warn("mission transition failed", zap.Int64("mission_id", missionID), zap.String("to", string(target)), zap.Error(err))
		return nil, err
	}
	s.store.Invalidate(ctx, session.InstitutionID)
	s.record(ctx, session, action, missionID, models.JournalSuccess, map[string]interface{}{"from": from, "to": target})

	if updated == nil {
		copyMission := *mission
		copyMission.Status = target
		updated = &copyMission
	}
	return updated, nil
}

// Edit rewrites the text of a mission still under review.
func (s *MissionService) Edit(ctx context.Context, session *models.Session, missionID int64, req dto.EditMissionRequest) (*models.Mission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mission payload")
	}
	if err := requireInstitution(session); err != nil {
		return nil, err
	}
	if !isStaff(session.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may edit missions")
	}
	mission, err := s.store.Find(ctx, session.InstitutionID, missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusInReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "mission can only be edited while in review")
	}

	updated, err := s.repo.Update(ctx, missionID, models.MissionUpdate{Title: &req.Title, Description: &req.Description})
	if err != nil {
		err = s.store.staleOr(ctx, session.InstitutionID, err)
		s.record(ctx, session, models.JournalActionEdit, missionID, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	s.store.Invalidate(ctx, session.InstitutionID)
	s.record(ctx, session, models.JournalActionEdit, missionID, models.JournalSuccess, nil)

	if updated == nil {
		copyMission := *mission
		copyMission.Title = req.Title
		copyMission.Description = req.Description
		updated = &copyMission
	}
	return updated, nil
}

// Discard deletes a mission still under review.
func (s *MissionService) Discard(ctx context.Context, session *models.Session, missionID int64) error {
	if err := requireInstitution(session); err != nil {
		return err
	}
	if !isStaff(session.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may discard missions")
	}
	mission, err := s.store.Find(ctx, session.InstitutionID, missionID)
	if err != nil {
		return err
	}
	if mission.Status != models.MissionStatusInReview {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only missions in review can be discarded")
	}
	if err := s.repo.Delete(ctx, missionID); err != nil {
		err = s.store.staleOr(ctx, session.InstitutionID, err)
		s.record(ctx, session, models.JournalActionDiscard, missionID, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return err
	}
	s.store.Invalidate(ctx, session.InstitutionID)
	s.record(ctx, session, models.JournalActionDiscard, missionID, models.JournalSuccess, nil)
	return nil
}

func (s *MissionService) record(ctx context.Context, session *models.Session, action string, missionID int64, outcome models.JournalOutcome, detail map[string]interface{}) {
	s.journal.Record(ctx, session, action, models.JournalEntityMission, strconv.FormatInt(missionID, 10), outcome, detail)
}

func requireInstitution(session *models.Session) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	if session.InstitutionID == 0 {
		return appErrors.Clone(appErrors.ErrForbidden, "session is not bound to an institution")
	}
	return nil
}
