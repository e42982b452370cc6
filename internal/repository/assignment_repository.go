package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
)

// AssignmentRepository manages assignments on the platform.
type AssignmentRepository struct {
	client *platform.Client
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(client *platform.Client) *AssignmentRepository {
	return &AssignmentRepository{client: client}
}

// ListByMission returns every assignment registered for a mission.
func (r *AssignmentRepository) ListByMission(ctx context.Context, missionID int64) ([]models.Assignment, error) {
	query := url.Values{"idMision": {strconv.FormatInt(missionID, 10)}}
	var assignments []models.Assignment
	if err := r.client.Get(ctx, "assignment.list", "/asignacion/listar-segun-mision", query, &assignments); err != nil {
		return nil, err
	}
	for i := range assignments {
		if assignments[i].MissionID == 0 {
			assignments[i].MissionID = missionID
		}
	}
	return assignments, nil
}

// Create registers a student membership in a mission.
func (r *AssignmentRepository) Create(ctx context.Context, req models.CreateAssignment) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.client.Post(ctx, "assignment.create", "/asignacion/registrar", req, &assignment); err != nil {
		return nil, err
	}
	if assignment.MissionID == 0 {
		assignment.MissionID = req.MissionID
	}
	if assignment.StudentMembershipID == 0 {
		assignment.StudentMembershipID = req.StudentMembershipID
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusInProgress
	}
	return &assignment, nil
}

// UploadEvidence attaches an evidence file to an assignment.
func (r *AssignmentRepository) UploadEvidence(ctx context.Context, id int64, file models.EvidenceFile) (*models.Assignment, error) {
	var assignment models.Assignment
	path := fmt.Sprintf("/asignacion/actualizar-evidencia/%d", id)
	if err := r.client.Upload(ctx, "assignment.evidence", http.MethodPut, path, "file", file, &assignment); err != nil {
		return nil, err
	}
	if assignment.ID == 0 {
		return nil, nil
	}
	return &assignment, nil
}
