package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type assignmentStore interface {
	ListByMission(ctx context.Context, missionID int64) ([]models.Assignment, error)
	Create(ctx context.Context, req models.CreateAssignment) (*models.Assignment, error)
	UploadEvidence(ctx context.Context, id int64, file models.EvidenceFile) (*models.Assignment, error)
}

// boardStatuses are the mission statuses a student can ever see.
var boardStatuses = []models.MissionStatus{
	models.MissionStatusOpen,
	models.MissionStatusInProgress,
	models.MissionStatusFinalized,
}

// Student progress reported for each student-facing status.
const (
	progressNotEnrolled = 0
	progressInProgress  = 50
	progressCompleted   = 100
)

// DeriveStudentView combines a mission with the student's assignment among assignments.
// It reports false when the student has no assignment and the mission is not open, in
// which case the mission is not part of the student's visible set.
func DeriveStudentView(mission models.Mission, assignments []models.Assignment, membershipID int64) (models.StudentMissionView, bool) {
	view := models.StudentMissionView{
		Mission:       mission,
		StudentStatus: models.StudentMissionNotEnrolled,
		Progress:      progressNotEnrolled,
	}
	for _, assignment := range assignments {
		if assignment.StudentMembershipID != membershipID {
			continue
		}
		id := assignment.ID
		view.AssignmentID = &id
		view.Points = assignment.Points
		if assignment.Finalized() {
			view.StudentStatus = models.StudentMissionCompleted
			view.Progress = progressCompleted
		} else {
			view.StudentStatus = models.StudentMissionInProgress
			view.Progress = progressInProgress
		}
		return view, true
	}
	if mission.Status != models.MissionStatusOpen {
		return models.StudentMissionView{}, false
	}
	return view, true
}

// AssignmentService is the assignment tracker: enrollment, evidence and the student board.
type AssignmentService struct {
	store       *MissionStore
	repo        assignmentStore
	cache       *CacheService
	journal     journalRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	concurrency int
}

// AssignmentServiceParams groups constructor dependencies.
type AssignmentServiceParams struct {
	Store       *MissionStore
	Repo        assignmentStore
	Cache       *CacheService
	Journal     journalRecorder
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Concurrency int
}

// NewAssignmentService constructs the tracker.
func NewAssignmentService(params AssignmentServiceParams) *AssignmentService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Journal == nil {
		params.Journal = noopJournal{}
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 8
	}
	return &AssignmentService{
		store:       params.Store,
		repo:        params.Repo,
		cache:       params.Cache,
		journal:     params.Journal,
		metrics:     params.Metrics,
		validator:   params.Validator,
		logger:      params.Logger,
		concurrency: params.Concurrency,
	}
}

// Enroll registers membershipID in a mission open for enrollment. Enrolling twice is not
// an error: the existing assignment is returned with Created=false.
func (s *AssignmentService) Enroll(ctx context.Context, session *models.Session, missionID, membershipID int64) (*models.EnrollmentResult, error) {
	req := models.CreateAssignment{MissionID: missionID, StudentMembershipID: membershipID}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := requireInstitution(session); err != nil {
		return nil, err
	}
	switch session.Role {
	case models.RoleStudent:
		if membershipID != session.MembershipID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves")
		}
	case models.RoleTeacher, models.RoleInstitution:
	default:
		return nil, appErrors.ErrForbidden
	}

	mission, err := s.store.Find(ctx, session.InstitutionID, missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusOpen {
		s.record(ctx, session, missionID, membershipID, models.JournalNoop, map[string]interface{}{"reason": "mission_not_open", "estado": mission.Status})
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "mission is not open for enrollment")
	}

	existing, err := s.findAssignment(ctx, missionID, membershipID)
	if err != nil {
		return nil, s.store.staleOr(ctx, session.InstitutionID, err)
	}
	if existing != nil {
		s.record(ctx, session, missionID, membershipID, models.JournalNoop, map[string]interface{}{"reason": "already_enrolled"})
		return &models.EnrollmentResult{Assignment: *existing, Created: false}, nil
	}

	created, err := s.repo.Create(ctx, req)
	if err != nil {
		if platform.IsDuplicate(err) {
			existing, findErr := s.findAssignment(ctx, missionID, membershipID)
			if findErr == nil && existing != nil {
				s.record(ctx, session, missionID, membershipID, models.JournalNoop, map[string]interface{}{"reason": "duplicate_resolved"})
				return &models.EnrollmentResult{Assignment: *existing, Created: false}, nil
			}
			s.logger.Warn("duplicate enrollment could not be resolved", zap.Int64("mission_id", missionID), zap.Int64("membership_id", membershipID), zap.Error(findErr))
		}
		err = s.store.staleOr(ctx, session.InstitutionID, err)
		s.record(ctx, session, missionID, membershipID, models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	s.invalidateDashboards(ctx, session)
	s.record(ctx, session, missionID, membershipID, models.JournalSuccess, map[string]interface{}{"idAsignacion": created.ID})
	return &models.EnrollmentResult{Assignment: *created, Created: true}, nil
}

func (s *AssignmentService) findAssignment(ctx context.Context, missionID, membershipID int64) (*models.Assignment, error) {
	assignments, err := s.repo.ListByMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		if assignments[i].StudentMembershipID == membershipID {
			return &assignments[i], nil
		}
	}
	return nil, nil
}

// SubmitEvidence attaches a file to an assignment that is not finalized. The assignment
// status is left to the grader.
func (s *AssignmentService) SubmitEvidence(ctx context.Context, session *models.Session, missionID, assignmentID int64, file models.EvidenceFile) (*models.Assignment, error) {
	if session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if missionID <= 0 || assignmentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mission and assignment ids are required")
	}
	if strings.TrimSpace(file.Name) == "" || file.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evidence file is required")
	}

	assignments, err := s.repo.ListByMission(ctx, missionID)
	if err != nil {
		return nil, s.store.staleOr(ctx, session.InstitutionID, err)
	}
	var current *models.Assignment
	for i := range assignments {
		if assignments[i].ID == assignmentID {
			current = &assignments[i]
			break
		}
	}
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrStaleReference, "assignment no longer exists")
	}
	if session.Role == models.RoleStudent && current.StudentMembershipID != session.MembershipID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another student")
	}
	if current.Finalized() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "assignment already graded")
	}

	updated, err := s.repo.UploadEvidence(ctx, assignmentID, file)
	if err != nil {
		if platform.IsNotFound(err) {
			err = appErrors.Wrap(err, appErrors.ErrStaleReference.Code, appErrors.ErrStaleReference.Status, "assignment no longer exists")
		}
		s.journal.Record(ctx, session, models.JournalActionEvidence, models.JournalEntityAssignment, strconv.FormatInt(assignmentID, 10), models.JournalFailed, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	s.journal.Record(ctx, session, models.JournalActionEvidence, models.JournalEntityAssignment, strconv.FormatInt(assignmentID, 10), models.JournalSuccess, map[string]interface{}{"file": file.Name, "size": file.Size})

	if updated == nil {
		copyAssignment := *current
		name := file.Name
		copyAssignment.Evidence = &name
		updated = &copyAssignment
	}
	return updated, nil
}

// MissionAssignments lists a mission's assignments for staff.
func (s *AssignmentService) MissionAssignments(ctx context.Context, session *models.Session, missionID int64) ([]models.Assignment, error) {
	if err := requireInstitution(session); err != nil {
		return nil, err
	}
	if _, err := s.store.Find(ctx, session.InstitutionID, missionID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListByMission(ctx, missionID)
	if err != nil {
		return nil, s.store.staleOr(ctx, session.InstitutionID, err)
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	return assignments, nil
}

// StudentBoard derives the student's visible missions. Missions are read per status and
// their assignments are fetched concurrently; a mission whose lookup fails is logged,
// reported in Skipped and left out without affecting the others.
func (s *AssignmentService) StudentBoard(ctx context.Context, session *models.Session) (*models.StudentBoard, error) {
	if err := requireStudent(session); err != nil {
		return nil, err
	}
	missions, err := s.store.ListMany(ctx, session.InstitutionID, boardStatuses...)
	if err != nil {
		return nil, err
	}
	perMission, ok, err := s.fanOut(ctx, missions, "student_board")
	if err != nil {
		return nil, err
	}

	board := &models.StudentBoard{
		Active:    []models.StudentMissionView{},
		Available: []models.StudentMissionView{},
	}
	for i, mission := range missions {
		if !ok[i] {
			board.Skipped = append(board.Skipped, mission.ID)
			continue
		}
		view, visible := DeriveStudentView(mission, perMission[i], session.MembershipID)
		if !visible {
			continue
		}
		if view.StudentStatus == models.StudentMissionNotEnrolled {
			board.Available = append(board.Available, view)
		} else {
			board.Active = append(board.Active, view)
		}
	}
	return board, nil
}

// fanOut fetches the assignments of every mission with bounded concurrency. ok[i] is false
// when the lookup for missions[i] failed. Only cancellation of ctx fails the whole call.
func (s *AssignmentService) fanOut(ctx context.Context, missions []models.Mission, scope string) ([][]models.Assignment, []bool, error) {
	results := make([][]models.Assignment, len(missions))
	ok := make([]bool, len(missions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range missions {
		i := i
		missionID := missions[i].ID
		g.Go(func() error {
			assignments, err := s.repo.ListByMission(gctx, missionID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.metrics.RecordFanoutSkip(scope)
				s.logger.Warn("assignment lookup failed, mission skipped",
					zap.String("scope", scope),
					zap.Int64("mission_id", missionID),
					zap.Error(err))
				return nil
			}
			results[i] = assignments
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("assignment fan-out: %w", err)
	}
	return results, ok, nil
}

// invalidateDashboards evicts the student dashboards an enrollment changes. Staff and
// institution summaries do not count enrollments and stay cached.
func (s *AssignmentService) invalidateDashboards(ctx context.Context, session *models.Session) {
	var err error
	if session.Role == models.RoleStudent {
		err = s.cache.Delete(ctx, dashboardKey(session))
	} else {
		err = s.cache.Invalidate(ctx, roleDashboardPattern(session.InstitutionID, models.RoleStudent))
	}
	if err != nil {
		s.logger.Debug("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *AssignmentService) record(ctx context.Context, session *models.Session, missionID, membershipID int64, outcome models.JournalOutcome, detail map[string]interface{}) {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	detail["idMision"] = missionID
	detail["idAlumnoInstitucion"] = membershipID
	s.journal.Record(ctx, session, models.JournalActionEnroll, models.JournalEntityMission, strconv.FormatInt(missionID, 10), outcome, detail)
}

func requireStudent(session *models.Session) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	if session.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students have a mission board")
	}
	if session.InstitutionID == 0 || session.MembershipID == 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not enrolled in an institution")
	}
	return nil
}
