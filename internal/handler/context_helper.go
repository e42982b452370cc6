package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/response"
)

// requireSession returns the request session or writes 401 and returns nil.
func requireSession(c *gin.Context) *models.Session {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return session
}

// idParam parses a positive numeric path parameter or writes 400.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
