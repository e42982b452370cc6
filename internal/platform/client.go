package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
	"github.com/noah-isme/mission-gateway/pkg/middleware/requestid"
)

const maxResponseBytes = 8 << 20

// Observer receives timing for every platform call.
type Observer interface {
	ObserveUpstream(operation string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client exchanges enveloped JSON documents with the platform API.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *zap.Logger
}

// envelope is the platform's response wrapper. A missing data field means an empty payload.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient constructs a platform client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

type tokenKey struct{}

// WithToken attaches the session's platform bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the platform token carried by ctx.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Get fetches path and decodes the envelope payload into dest.
func (c *Client) Get(ctx context.Context, op, path string, query url.Values, dest interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, "", dest)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, op, path string, body, dest interface{}) error {
	return c.sendJSON(ctx, op, http.MethodPost, path, body, dest)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, op, path string, body, dest interface{}) error {
	return c.sendJSON(ctx, op, http.MethodPut, path, body, dest)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil, "", nil)
}

// Upload streams file as a multipart form field.
func (c *Client) Upload(ctx context.Context, op, method, path, field string, file models.EvidenceFile, dest interface{}) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("copy evidence %s: %w", file.Name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	return c.do(ctx, op, method, path, nil, buf, writer.FormDataContentType(), dest)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	return c.do(ctx, op, method, path, nil, reader, "application/json", dest)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, dest interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("platform call failed", zap.String("operation", op), zap.Error(err))
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
		}
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read platform response")
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "malformed platform response")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, env.Message)
	}

	if dest == nil || isEmptyPayload(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fmt.Sprintf("unexpected %s payload", op))
	}
	return nil
}

func (c *Client) observe(op string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, duration)
	}
}

func isEmptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

var duplicateMarkers = []string{"duplicate", "duplicado", "ya existe", "already exists", "unique constraint"}

func isDuplicateMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range duplicateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// statusError maps a non-2xx platform status onto the gateway taxonomy.
func statusError(op string, status int, message string) error {
	cause := fmt.Errorf("%s: platform status %d: %s", op, status, message)
	switch {
	case status == http.StatusConflict || isDuplicateMessage(message):
		return appErrors.Wrap(cause, appErrors.ErrDuplicate.Code, appErrors.ErrDuplicate.Status, appErrors.ErrDuplicate.Message)
	case status == http.StatusNotFound:
		return appErrors.Wrap(cause, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	case status == http.StatusUnauthorized:
		return appErrors.Wrap(cause, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "platform session rejected")
	case status == http.StatusForbidden:
		return appErrors.Wrap(cause, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, appErrors.ErrForbidden.Message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		msg := message
		if msg == "" {
			msg = appErrors.ErrValidation.Message
		}
		return appErrors.Wrap(cause, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
	default:
		return appErrors.Wrap(cause, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
}

// IsNotFound reports whether err is a platform not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, appErrors.ErrNotFound)
}

// IsDuplicate reports whether err signals a uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, appErrors.ErrDuplicate)
}
