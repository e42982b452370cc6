package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/service"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type fakeMissionSrv struct {
	missions   []models.Mission
	cacheHit   bool
	lastStatus models.MissionStatus
	approveErr error
	transition dto.TransitionMissionRequest
}

func (f *fakeMissionSrv) List(_ context.Context, _ *models.Session, status models.MissionStatus) ([]models.Mission, bool, error) {
	f.lastStatus = status
	return f.missions, f.cacheHit, nil
}

func (f *fakeMissionSrv) Actions(_ context.Context, _ *models.Session, id int64) (*dto.MissionActionsResponse, error) {
	return &dto.MissionActionsResponse{MissionID: id}, nil
}

func (f *fakeMissionSrv) Approve(_ context.Context, _ *models.Session, id int64) (*models.Mission, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &models.Mission{ID: id, Status: models.MissionStatusOpen}, nil
}

func (f *fakeMissionSrv) Transition(_ context.Context, _ *models.Session, id int64, req dto.TransitionMissionRequest) (*models.Mission, error) {
	f.transition = req
	return &models.Mission{ID: id, Status: req.Status}, nil
}

func (f *fakeMissionSrv) Edit(_ context.Context, _ *models.Session, id int64, req dto.EditMissionRequest) (*models.Mission, error) {
	return &models.Mission{ID: id, Title: req.Title}, nil
}

func (f *fakeMissionSrv) Discard(context.Context, *models.Session, int64) error {
	return nil
}

type fakeManagementSrv struct {
	enrollCreated bool
	lastMember    int64
}

func (f *fakeManagementSrv) View(context.Context, *models.Session) (*models.ManagementView, error) {
	return &models.ManagementView{InstitutionID: 3}, nil
}

func (f *fakeManagementSrv) Students(context.Context, *models.Session) ([]models.StudentMembership, error) {
	return []models.StudentMembership{{ID: 17}}, nil
}

func (f *fakeManagementSrv) EnrollStudent(_ context.Context, _ *models.Session, missionID, membershipID int64) (*models.EnrollmentResult, error) {
	f.lastMember = membershipID
	return &models.EnrollmentResult{Assignment: models.Assignment{ID: 30, MissionID: missionID, StudentMembershipID: membershipID}, Created: f.enrollCreated}, nil
}

type fakeAssignmentsSrv struct{}

func (fakeAssignmentsSrv) MissionAssignments(context.Context, *models.Session, int64) ([]models.Assignment, error) {
	return []models.Assignment{}, nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) Roster(_ context.Context, _ *models.Session, format string) (*service.ExportResult, error) {
	f.format = format
	if format == "xls" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &service.ExportResult{Filename: "misiones-3-20260101.csv", ContentType: "text/csv", Payload: []byte("ID,Mision\n")}, nil
}

func newTestMissionHandler() (*MissionHandler, *fakeMissionSrv, *fakeManagementSrv, *fakeExporter) {
	missions := &fakeMissionSrv{}
	management := &fakeManagementSrv{}
	exporter := &fakeExporter{}
	return NewMissionHandler(missions, management, fakeAssignmentsSrv{}, exporter), missions, management, exporter
}

func TestMissionListNormalisesStatusAndReportsCache(t *testing.T) {
	handler, missions, _, _ := newTestMissionHandler()
	missions.missions = []models.Mission{{ID: 7, Status: models.MissionStatusInReview}}
	missions.cacheHit = true
	c, rec := testContext(http.MethodGet, "/missions?estado=en_revision", teacherSessionFixture())

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MissionStatusInReview, missions.lastStatus)
	assert.Contains(t, rec.Body.String(), `"cache_hit":true`)
	assert.Contains(t, rec.Body.String(), `"idMision":7`)
}

func TestMissionApproveInvalidTransitionIsConflict(t *testing.T) {
	handler, missions, _, _ := newTestMissionHandler()
	missions.approveErr = appErrors.Clone(appErrors.ErrInvalidTransition, "mission cannot move from FINALIZADO to CONVOCATORIA")
	c, rec := testContext(http.MethodPost, "/missions/7/approve", teacherSessionFixture())
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeEnvelope(t, rec).Error.Code)
}

func TestMissionTransitionBindsTarget(t *testing.T) {
	handler, missions, _, _ := newTestMissionHandler()
	c, rec := jsonContext(http.MethodPut, "/missions/7/status", `{"estado":"EN_PROGRESO"}`, teacherSessionFixture(), gin.Params{{Key: "id", Value: "7"}})

	handler.Transition(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MissionStatusInProgress, missions.transition.Status)
}

func TestMissionEnrollStatusReflectsCreation(t *testing.T) {
	handler, _, management, _ := newTestMissionHandler()
	management.enrollCreated = true
	c, rec := jsonContext(http.MethodPost, "/missions/7/enrollments", `{"idAlumnoInstitucion":42}`, teacherSessionFixture(), gin.Params{{Key: "id", Value: "7"}})
	handler.Enroll(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(42), management.lastMember)

	management.enrollCreated = false
	c, rec = jsonContext(http.MethodPost, "/missions/7/enrollments", `{"idAlumnoInstitucion":42}`, teacherSessionFixture(), gin.Params{{Key: "id", Value: "7"}})
	handler.Enroll(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissionExportWritesAttachment(t *testing.T) {
	handler, _, _, exporter := newTestMissionHandler()
	c, rec := testContext(http.MethodGet, "/missions/export?format=csv", teacherSessionFixture())

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, `attachment; filename="misiones-3-20260101.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID,Mision\n", rec.Body.String())

	c, rec = testContext(http.MethodGet, "/missions/export?format=xls", teacherSessionFixture())
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissionManagementReturnsInstitutionView(t *testing.T) {
	handler, _, _, _ := newTestMissionHandler()
	c, rec := testContext(http.MethodGet, "/missions/management", teacherSessionFixture())

	handler.Management(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"idInstitucion":3`)

	c, rec = testContext(http.MethodGet, "/missions/management", nil)
	handler.Management(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
