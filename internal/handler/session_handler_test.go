package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type fakeSessionSrv struct {
	login     models.LoginRequest
	loggedOut *models.Session
}

func (f *fakeSessionSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if req.Password != "secreto" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "gw-token", ExpiresIn: 3600, Session: studentSessionFixture().Info()}, nil
}

func (f *fakeSessionSrv) Logout(_ context.Context, session *models.Session) error {
	f.loggedOut = session
	return nil
}

func TestSessionLoginForwardsClientDetails(t *testing.T) {
	srv := &fakeSessionSrv{}
	handler := NewSessionHandler(srv)
	c, rec := jsonContext(http.MethodPost, "/sessions", `{"email":"ana@colegio.pe","password":"secreto"}`, nil, nil)
	c.Request.Header.Set("User-Agent", "tests")

	handler.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tests", srv.login.UserAgent)
	assert.Contains(t, rec.Body.String(), `"access_token":"gw-token"`)

	c, rec = jsonContext(http.MethodPost, "/sessions", `{"email":"ana@colegio.pe","password":"mal"}`, nil, nil)
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMeHidesUpstreamToken(t *testing.T) {
	handler := NewSessionHandler(&fakeSessionSrv{})
	c, rec := testContext(http.MethodGet, "/sessions/me", studentSessionFixture())

	handler.Me(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "platform-token")
	assert.Contains(t, rec.Body.String(), `"membershipId":17`)
}

func TestSessionLogout(t *testing.T) {
	srv := &fakeSessionSrv{}
	handler := NewSessionHandler(srv)
	session := studentSessionFixture()
	c, _ := testContext(http.MethodDelete, "/sessions", session)

	handler.Logout(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Same(t, session, srv.loggedOut)
}
