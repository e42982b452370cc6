package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type platformAuthenticator interface {
	Login(ctx context.Context, email, password string) (*models.PlatformLogin, error)
}

type membershipResolver interface {
	StudentMembership(ctx context.Context, studentID int64) (*models.StudentMembership, error)
	TeacherMembership(ctx context.Context, teacherID int64) (*models.TeacherMembership, error)
}

type sessionStore interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionConfig defines how gateway tokens are issued.
type SessionConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// SessionService signs users in through the platform and keeps their session context.
type SessionService struct {
	auth        platformAuthenticator
	memberships membershipResolver
	store       sessionStore
	states      *SessionStateRegistry
	journal     journalRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	config      SessionConfig
	now         func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(auth platformAuthenticator, memberships membershipResolver, store sessionStore, states *SessionStateRegistry, journal journalRecorder, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if journal == nil {
		journal = noopJournal{}
	}
	if config.TTL <= 0 {
		config.TTL = 12 * time.Hour
	}
	return &SessionService{
		auth:        auth,
		memberships: memberships,
		store:       store,
		states:      states,
		journal:     journal,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// Login authenticates against the platform, resolves the user's institution membership and
// returns a gateway token bound to a new session.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	login, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	role, ok := models.ParseRole(login.User.Role.Name)
	if !ok {
		s.logger.Warn("login rejected for unknown role", zap.Int64("user_id", login.User.ID), zap.String("role", login.User.Role.Name))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not supported")
	}

	issuedAt := s.now().UTC()
	session := &models.Session{
		ID:            uuid.NewString(),
		UserID:        login.User.ID,
		Email:         login.User.Email,
		DisplayName:   login.User.Email,
		Role:          role,
		UpstreamToken: login.Token,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(s.config.TTL),
	}
	if err := s.resolveMembership(platform.WithToken(ctx, login.Token), session, login); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, session, s.config.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	token, err := s.sign(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.journal.Record(ctx, session, models.JournalActionLogin, models.JournalEntitySession, session.ID, models.JournalSuccess, map[string]interface{}{
		"ip":        req.IP,
		"userAgent": req.UserAgent,
	})
	s.logger.Info("session opened", zap.String("session_id", session.ID), zap.Int64("user_id", session.UserID), zap.String("role", string(role)))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.TTL.Seconds()),
		Session:     session.Info(),
	}, nil
}

func (s *SessionService) resolveMembership(ctx context.Context, session *models.Session, login *models.PlatformLogin) error {
	switch session.Role {
	case models.RoleStudent:
		if login.Student == nil || login.Student.ID == 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "student profile missing")
		}
		id := login.Student.ID
		session.StudentID = &id
		if name := strings.TrimSpace(login.Student.FullName()); name != "" {
			session.DisplayName = name
		}
		membership, err := s.memberships.StudentMembership(ctx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			s.logger.Warn("student without institution", zap.Int64("student_id", id))
			return nil
		}
		session.MembershipID = membership.ID
		session.InstitutionID = membership.Institution.ID
	case models.RoleTeacher:
		if login.Teacher == nil || login.Teacher.ID == 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher profile missing")
		}
		id := login.Teacher.ID
		session.TeacherID = &id
		if name := strings.TrimSpace(login.Teacher.FullName()); name != "" {
			session.DisplayName = name
		}
		membership, err := s.memberships.TeacherMembership(ctx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			s.logger.Warn("teacher without institution", zap.Int64("teacher_id", id))
			return nil
		}
		session.MembershipID = membership.ID
		session.InstitutionID = membership.Institution.ID
	case models.RoleInstitution:
		if login.Institution == nil || login.Institution.ID == 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "institution profile missing")
		}
		session.InstitutionID = login.Institution.ID
		if login.Institution.Name != "" {
			session.DisplayName = login.Institution.Name
		}
	}
	return nil
}

func (s *SessionService) sign(session *models.Session) (string, error) {
	claims := &models.SessionClaims{
		SessionID: session.ID,
		UserID:    session.UserID,
		Role:      session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   fmt.Sprintf("%d", session.UserID),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
			ID:        session.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken parses and validates a gateway token returning its claims.
func (s *SessionService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Authenticate validates a token and loads the session it refers to.
func (s *SessionService) Authenticate(ctx context.Context, tokenString string) (*models.Session, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, appErrors.ErrUnauthorized) {
			s.states.Teardown(claims.SessionID)
		}
		return nil, err
	}
	if session.UserID != claims.UserID || session.Role != claims.Role {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match session")
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		s.states.Teardown(session.ID)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	s.states.Bind(session.ID, session.ExpiresAt)
	return session, nil
}

// Logout ends the session and drops its in-memory chat state.
func (s *SessionService) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	s.states.Teardown(session.ID)
	if err := s.store.Delete(ctx, session.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.journal.Record(ctx, session, models.JournalActionLogout, models.JournalEntitySession, session.ID, models.JournalSuccess, nil)
	return nil
}
