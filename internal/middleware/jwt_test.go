package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/logger"
)

type fakeAuthenticator struct {
	session *models.Session
	token   string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*models.Session, error) {
	f.token = token
	if f.session == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return f.session, nil
}

func TestSessionMiddlewareAttachesSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuthenticator{session: &models.Session{ID: "s1", UserID: 42, Role: models.RoleStudent, UpstreamToken: "upstream"}}

	var upstream, actor string
	var seen *models.Session
	router := gin.New()
	router.Use(Session(auth))
	router.GET("/", func(c *gin.Context) {
		seen = SessionFromContext(c)
		upstream = platform.TokenFromContext(c.Request.Context())
		actor = c.GetString(logger.ActorKey)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer gw-token")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "gw-token", auth.token)
	assert.Equal(t, "s1", seen.ID)
	assert.Equal(t, "upstream", upstream)
	assert.Equal(t, "42", actor)
}

func TestSessionMiddlewareRejectsMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Session(&fakeAuthenticator{}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, header := range []string{"", "Token abc", "Bearer "} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		session *models.Session
		want    int
	}{
		{name: "no session", want: http.StatusUnauthorized},
		{name: "allowed", session: &models.Session{Role: models.RoleTeacher}, want: http.StatusNoContent},
		{name: "denied", session: &models.Session{Role: models.RoleStudent}, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tc.session != nil {
					c.Set(ContextSessionKey, tc.session)
				}
			})
			router.GET("/", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
