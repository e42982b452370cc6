package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/service"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type missionService interface {
	List(ctx context.Context, session *models.Session, status models.MissionStatus) ([]models.Mission, bool, error)
	Actions(ctx context.Context, session *models.Session, missionID int64) (*dto.MissionActionsResponse, error)
	Approve(ctx context.Context, session *models.Session, missionID int64) (*models.Mission, error)
	Transition(ctx context.Context, session *models.Session, missionID int64, req dto.TransitionMissionRequest) (*models.Mission, error)
	Edit(ctx context.Context, session *models.Session, missionID int64, req dto.EditMissionRequest) (*models.Mission, error)
	Discard(ctx context.Context, session *models.Session, missionID int64) error
}

type managementService interface {
	View(ctx context.Context, session *models.Session) (*models.ManagementView, error)
	Students(ctx context.Context, session *models.Session) ([]models.StudentMembership, error)
	EnrollStudent(ctx context.Context, session *models.Session, missionID, membershipID int64) (*models.EnrollmentResult, error)
}

type missionAssignments interface {
	MissionAssignments(ctx context.Context, session *models.Session, missionID int64) ([]models.Assignment, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, session *models.Session, format string) (*service.ExportResult, error)
}

// MissionHandler exposes the mission lifecycle and management endpoints.
type MissionHandler struct {
	missions    missionService
	management  managementService
	assignments missionAssignments
	exports     rosterExporter
}

// NewMissionHandler constructs the handler.
func NewMissionHandler(missions missionService, management managementService, assignments missionAssignments, exports rosterExporter) *MissionHandler {
	return &MissionHandler{missions: missions, management: management, assignments: assignments, exports: exports}
}

// List godoc
// @Summary List missions
// @Tags Missions
// @Produce json
// @Param estado query string false "EN_REVISION, CONVOCATORIA, EN_PROGRESO or FINALIZADO"
// @Success 200 {object} response.Envelope
// @Router /missions [get]
func (h *MissionHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	status := models.MissionStatus(strings.ToUpper(strings.TrimSpace(c.Query("estado"))))
	missions, cacheHit, err := h.missions.List(c.Request.Context(), session, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, missions, middleware.ExtractMeta(c))
}

// Management godoc
// @Summary Staff management view
// @Tags Missions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /missions/management [get]
func (h *MissionHandler) Management(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	view, err := h.management.View(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Students godoc
// @Summary Institution students
// @Tags Missions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *MissionHandler) Students(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	students, err := h.management.Students(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students)
}

// Export godoc
// @Summary Export the mission roster
// @Tags Missions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /missions/export [get]
func (h *MissionHandler) Export(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	result, err := h.exports.Roster(c.Request.Context(), session, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// Actions godoc
// @Summary Available transitions and actions
// @Tags Missions
// @Produce json
// @Param id path int true "Mission ID"
// @Success 200 {object} response.Envelope
// @Router /missions/{id}/actions [get]
func (h *MissionHandler) Actions(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actions, err := h.missions.Actions(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, actions)
}

// Edit godoc
// @Summary Edit a mission in review
// @Tags Missions
// @Accept json
// @Produce json
// @Param id path int true "Mission ID"
// @Param payload body dto.EditMissionRequest true "Mission text"
// @Success 200 {object} response.Envelope
// @Router /missions/{id} [put]
func (h *MissionHandler) Edit(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.EditMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid mission payload"))
		return
	}
	mission, err := h.missions.Edit(c.Request.Context(), session, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mission)
}

// Approve godoc
// @Summary Approve a mission in review
// @Tags Missions
// @Produce json
// @Param id path int true "Mission ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /missions/{id}/approve [post]
func (h *MissionHandler) Approve(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	mission, err := h.missions.Approve(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mission)
}

// Transition godoc
// @Summary Move a mission to another status
// @Tags Missions
// @Accept json
// @Produce json
// @Param id path int true "Mission ID"
// @Param payload body dto.TransitionMissionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /missions/{id}/status [put]
func (h *MissionHandler) Transition(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	mission, err := h.missions.Transition(c.Request.Context(), session, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mission)
}

// Discard godoc
// @Summary Discard a mission in review
// @Tags Missions
// @Param id path int true "Mission ID"
// @Success 204
// @Router /missions/{id} [delete]
func (h *MissionHandler) Discard(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.missions.Discard(c.Request.Context(), session, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assignments godoc
// @Summary Assignments of a mission
// @Tags Missions
// @Produce json
// @Param id path int true "Mission ID"
// @Success 200 {object} response.Envelope
// @Router /missions/{id}/assignments [get]
func (h *MissionHandler) Assignments(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	assignments, err := h.assignments.MissionAssignments(c.Request.Context(), session, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignments)
}

// Enroll godoc
// @Summary Enroll an institution student
// @Tags Missions
// @Accept json
// @Produce json
// @Param id path int true "Mission ID"
// @Param payload body dto.EnrollStudentRequest true "Student membership"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "already enrolled"
// @Router /missions/{id}/enrollments [post]
func (h *MissionHandler) Enroll(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment payload"))
		return
	}
	result, err := h.management.EnrollStudent(c.Request.Context(), session, id, req.StudentMembershipID)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeEnrollment(c, result)
}

func writeEnrollment(c *gin.Context, result *models.EnrollmentResult) {
	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}
