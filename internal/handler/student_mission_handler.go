package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type assignmentTracker interface {
	StudentBoard(ctx context.Context, session *models.Session) (*models.StudentBoard, error)
	Enroll(ctx context.Context, session *models.Session, missionID, membershipID int64) (*models.EnrollmentResult, error)
	SubmitEvidence(ctx context.Context, session *models.Session, missionID, assignmentID int64, file models.EvidenceFile) (*models.Assignment, error)
}

// StudentMissionHandler serves the student's mission board and submissions.
type StudentMissionHandler struct {
	tracker assignmentTracker
}

// NewStudentMissionHandler constructs the handler.
func NewStudentMissionHandler(tracker assignmentTracker) *StudentMissionHandler {
	return &StudentMissionHandler{tracker: tracker}
}

// Board godoc
// @Summary Student mission board
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/missions [get]
func (h *StudentMissionHandler) Board(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	board, err := h.tracker.StudentBoard(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSkipped(c, board.Skipped)
	response.OK(c, board, middleware.ExtractMeta(c))
}

// Enroll godoc
// @Summary Enroll in an open mission
// @Tags Student
// @Produce json
// @Param id path int true "Mission ID"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "already enrolled"
// @Router /student/missions/{id}/enroll [post]
func (h *StudentMissionHandler) Enroll(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.tracker.Enroll(c.Request.Context(), session, id, session.MembershipID)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeEnrollment(c, result)
}

// SubmitEvidence godoc
// @Summary Upload assignment evidence
// @Tags Student
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Assignment ID"
// @Param idMision formData int true "Mission ID"
// @Param file formData file true "Evidence"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/evidence [put]
func (h *StudentMissionHandler) SubmitEvidence(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	missionID, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("idMision")), 10, 64)
	if err != nil || missionID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "idMision is required"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	assignment, err := h.tracker.SubmitEvidence(c.Request.Context(), session, missionID, id, models.EvidenceFile{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}
