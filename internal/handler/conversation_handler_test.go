package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type fakeConversationSrv struct {
	send     *models.SendResult
	sendErr  error
	renamed  *models.Conversation
	lastID   int64
	lastSend dto.SendMessageRequest
}

func (f *fakeConversationSrv) List(context.Context, *models.Session) ([]models.Conversation, error) {
	return []models.Conversation{}, nil
}

func (f *fakeConversationSrv) Create(context.Context, *models.Session) (*models.Conversation, error) {
	return &models.Conversation{ID: 9}, nil
}

func (f *fakeConversationSrv) Activate(_ context.Context, _ *models.Session, req dto.ActivateConversationRequest) (*models.Conversation, error) {
	return &models.Conversation{ID: req.ConversationID}, nil
}

func (f *fakeConversationSrv) Active(*models.Session) (*dto.ActiveConversationResponse, error) {
	return &dto.ActiveConversationResponse{}, nil
}

func (f *fakeConversationSrv) Rename(_ context.Context, _ *models.Session, id int64, _ dto.RenameConversationRequest) (*models.Conversation, error) {
	f.lastID = id
	return f.renamed, nil
}

func (f *fakeConversationSrv) Delete(_ context.Context, _ *models.Session, id int64) (*dto.DeleteConversationResponse, error) {
	return &dto.DeleteConversationResponse{DeletedID: id}, nil
}

func (f *fakeConversationSrv) History(context.Context, *models.Session, int64) ([]models.Message, error) {
	return []models.Message{}, nil
}

func (f *fakeConversationSrv) SendMessage(_ context.Context, _ *models.Session, id int64, req dto.SendMessageRequest) (*models.SendResult, error) {
	f.lastID = id
	f.lastSend = req
	return f.send, f.sendErr
}

func jsonContext(method, target, body string, session *models.Session, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	c, rec := bodyContext(method, target, bytes.NewBufferString(body), session)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	return c, rec
}

func TestConversationSendFailureKeepsOutcome(t *testing.T) {
	srv := &fakeConversationSrv{
		send: &models.SendResult{
			Outcome:     models.SendFailed,
			UserMessage: models.TimelineEntry{Ref: models.PendingRef("local-1"), Content: "hola", State: models.DeliveryFailed},
		},
		sendErr: appErrors.Clone(appErrors.ErrUpstream, "tutor unavailable"),
	}
	handler := NewConversationHandler(srv)
	c, rec := jsonContext(http.MethodPost, "/conversations/4/messages", `{"contenido":"hola"}`, studentSessionFixture(), gin.Params{{Key: "id", Value: "4"}})

	handler.Send(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", envelope.Error.Code)
	assert.Equal(t, "FAILED", envelope.Data["outcome"])
	assert.Equal(t, int64(4), srv.lastID)
	assert.Equal(t, "hola", srv.lastSend.Content)
}

func TestConversationBlankInputsAreNoContent(t *testing.T) {
	srv := &fakeConversationSrv{}
	handler := NewConversationHandler(srv)

	c, _ := jsonContext(http.MethodPost, "/conversations/4/messages", `{"contenido":"   "}`, studentSessionFixture(), gin.Params{{Key: "id", Value: "4"}})
	handler.Send(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())

	c, _ = jsonContext(http.MethodPut, "/conversations/4", `{"nombre":""}`, studentSessionFixture(), gin.Params{{Key: "id", Value: "4"}})
	handler.Rename(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestConversationRejectsBadID(t *testing.T) {
	handler := NewConversationHandler(&fakeConversationSrv{})
	c, rec := testContext(http.MethodGet, "/conversations/abc/messages", studentSessionFixture())
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.History(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
