package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type tokenTable map[string]*models.Session

func (t tokenTable) Authenticate(_ context.Context, token string) (*models.Session, error) {
	session, ok := t[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return session, nil
}

type fakeJournalSrv struct{}

func (fakeJournalSrv) List(context.Context, *models.Session, dto.JournalQuery) ([]models.JournalEntry, error) {
	return []models.JournalEntry{}, nil
}

func buildGatewayRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	missions, _, _, _ := newTestMissionHandler()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Sessions:       NewSessionHandler(&fakeSessionSrv{}),
		Missions:       missions,
		StudentMission: NewStudentMissionHandler(&fakeTracker{board: &models.StudentBoard{}}),
		Conversations:  NewConversationHandler(&fakeConversationSrv{}),
		Dashboard:      NewDashboardHandler(&fakeDashboardSrv{resp: &dto.DashboardResponse{Role: models.RoleStudent}}),
		Journal:        NewJournalHandler(fakeJournalSrv{}),
		Directory:      NewDirectoryHandler(&fakeDirectorySrv{}),
	}, middleware.Session(tokenTable{
		"student": studentSessionFixture(),
		"teacher": teacherSessionFixture(),
		"admin":   adminSessionFixture(),
	}))
	return router
}

func performRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGatewayRoutes(t *testing.T) {
	router := buildGatewayRouter()

	t.Run("missing token", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/dashboard", "")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/dashboard", "expired")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("dashboard carries meta", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/dashboard", "student")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"cache_hit":false`)
	})

	t.Run("student cannot open management", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/missions/management", "student")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("teacher opens management", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/missions/management", "teacher")
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("teacher cannot use student board", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/student/missions", "teacher")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("student cannot read journal", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/journal", "student")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("teacher lists institution teachers", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/teachers", "teacher")
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("student cannot list teachers", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/teachers", "student")
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin listings are admin only", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, performRequest(router, http.MethodGet, "/api/v1/admin/users", "teacher").Code)
		require.Equal(t, http.StatusOK, performRequest(router, http.MethodGet, "/api/v1/admin/institutions", "admin").Code)
	})

	t.Run("static segment wins over id", func(t *testing.T) {
		resp := performRequest(router, http.MethodGet, "/api/v1/conversations/active", "student")
		require.Equal(t, http.StatusOK, resp.Code)
	})
}
