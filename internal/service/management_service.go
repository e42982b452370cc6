package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type institutionDirectory interface {
	InstitutionStudents(ctx context.Context, institutionID int64) ([]models.StudentMembership, error)
}

// managementStatuses is the teacher's working set.
var managementStatuses = []models.MissionStatus{
	models.MissionStatusInReview,
	models.MissionStatusOpen,
	models.MissionStatusInProgress,
}

// ManagementService composes the lifecycle controller and the assignment tracker for staff.
type ManagementService struct {
	store       *MissionStore
	assignments *AssignmentService
	directory   institutionDirectory
	logger      *zap.Logger
}

// NewManagementService constructs the service.
func NewManagementService(store *MissionStore, assignments *AssignmentService, directory institutionDirectory, logger *zap.Logger) *ManagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagementService{store: store, assignments: assignments, directory: directory, logger: logger}
}

func requireStaff(session *models.Session) error {
	if err := requireInstitution(session); err != nil {
		return err
	}
	if !isStaff(session.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers and institutions manage missions")
	}
	return nil
}

// View returns the missions under review, open or in progress together with the
// institution's students. Enrollment is offered without checking who is already enrolled.
func (s *ManagementService) View(ctx context.Context, session *models.Session) (*models.ManagementView, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	missions, err := s.store.ListMany(ctx, session.InstitutionID, managementStatuses...)
	if err != nil {
		return nil, err
	}
	students, err := s.Students(ctx, session)
	if err != nil {
		return nil, err
	}

	managed := make([]models.ManagedMission, 0, len(missions))
	for _, mission := range missions {
		managed = append(managed, models.ManagedMission{Mission: mission, Actions: AvailableActions(mission, session.Role)})
	}
	return &models.ManagementView{InstitutionID: session.InstitutionID, Missions: managed, Students: students}, nil
}

// Students lists the institution's student memberships.
func (s *ManagementService) Students(ctx context.Context, session *models.Session) ([]models.StudentMembership, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	students, err := s.directory.InstitutionStudents(ctx, session.InstitutionID)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []models.StudentMembership{}
	}
	return students, nil
}

// EnrollStudent enrolls an institution student; duplicates resolve to the existing assignment.
func (s *ManagementService) EnrollStudent(ctx context.Context, session *models.Session, missionID, membershipID int64) (*models.EnrollmentResult, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	return s.assignments.Enroll(ctx, session, missionID, membershipID)
}

// Roster lists the working set with enrollment counts. Missions whose assignments could not
// be read keep an empty count.
func (s *ManagementService) Roster(ctx context.Context, session *models.Session) ([]models.RosterRow, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	missions, err := s.store.ListMany(ctx, session.InstitutionID, managementStatuses...)
	if err != nil {
		return nil, err
	}
	perMission, ok, err := s.assignments.fanOut(ctx, missions, "roster")
	if err != nil {
		return nil, err
	}
	rows := make([]models.RosterRow, 0, len(missions))
	for i, mission := range missions {
		row := models.RosterRow{MissionID: mission.ID, Title: mission.Title, Status: mission.Status}
		if ok[i] {
			count := len(perMission[i])
			row.Enrolled = &count
		}
		rows = append(rows, row)
	}
	return rows, nil
}
