package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

type directoryService interface {
	Teachers(ctx context.Context, session *models.Session) ([]models.TeacherMembership, error)
	AcademicStructure(ctx context.Context, session *models.Session) ([]models.AcademicLevel, error)
	Institutions(ctx context.Context, session *models.Session) ([]models.Institution, bool, error)
	Users(ctx context.Context, session *models.Session, role models.UserRole) ([]models.PlatformUser, bool, error)
}

// DirectoryHandler exposes the staff and admin listings.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// Teachers godoc
// @Summary Institution teachers
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *DirectoryHandler) Teachers(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	teachers, err := h.service.Teachers(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teachers)
}

// AcademicStructure godoc
// @Summary Institution levels and grades
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academic-structure [get]
func (h *DirectoryHandler) AcademicStructure(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	levels, err := h.service.AcademicStructure(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, levels)
}

// Institutions godoc
// @Summary Platform institutions
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/institutions [get]
func (h *DirectoryHandler) Institutions(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	institutions, hit, err := h.service.Institutions(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, institutions, middleware.ExtractMeta(c))
}

// Users godoc
// @Summary Platform accounts
// @Tags Directory
// @Produce json
// @Param rol query string false "ALUMNO, DOCENTE, INSTITUCION or ADMIN"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *DirectoryHandler) Users(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var role models.UserRole
	if raw := strings.TrimSpace(c.Query("rol")); raw != "" {
		parsed, ok := models.ParseRole(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
			return
		}
		role = parsed
	}
	users, hit, err := h.service.Users(c.Request.Context(), session, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, users, middleware.ExtractMeta(c))
}
