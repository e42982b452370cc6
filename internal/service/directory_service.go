package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

const (
	institutionsCacheKey = "directory:institutions"
	usersCacheKey        = "directory:users"
)

type directoryStore interface {
	Institutions(ctx context.Context) ([]models.Institution, error)
	Users(ctx context.Context) ([]models.PlatformUser, error)
	AcademicStructure(ctx context.Context, institutionID int64) ([]models.AcademicLevel, error)
}

type teacherDirectory interface {
	InstitutionTeachers(ctx context.Context, institutionID int64) ([]models.TeacherMembership, error)
}

// DirectoryService serves the read-only staff and admin listings: an institution's
// teachers and academic structure, and the platform-wide institutions and accounts.
type DirectoryService struct {
	repo     directoryStore
	teachers teacherDirectory
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(repo directoryStore, teachers teacherDirectory, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{repo: repo, teachers: teachers, cache: cache, ttl: ttl, logger: logger}
}

// Teachers lists the teacher memberships of the session's institution.
func (s *DirectoryService) Teachers(ctx context.Context, session *models.Session) ([]models.TeacherMembership, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	teachers, err := s.teachers.InstitutionTeachers(ctx, session.InstitutionID)
	if err != nil && !platform.IsNotFound(err) {
		return nil, err
	}
	if teachers == nil {
		teachers = []models.TeacherMembership{}
	}
	return teachers, nil
}

// AcademicStructure returns the levels and grades of the session's institution. An
// institution without units yet has an empty structure.
func (s *DirectoryService) AcademicStructure(ctx context.Context, session *models.Session) ([]models.AcademicLevel, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	levels, err := s.repo.AcademicStructure(ctx, session.InstitutionID)
	if err != nil && !platform.IsNotFound(err) {
		return nil, err
	}
	if levels == nil {
		levels = []models.AcademicLevel{}
	}
	return levels, nil
}

// Institutions lists every institution for an administrator, reporting whether the
// listing came from cache.
func (s *DirectoryService) Institutions(ctx context.Context, session *models.Session) ([]models.Institution, bool, error) {
	if err := requireAdmin(session); err != nil {
		return nil, false, err
	}
	var institutions []models.Institution
	hit, err := s.cached(ctx, institutionsCacheKey, &institutions, func() (interface{}, error) {
		list, err := s.repo.Institutions(ctx)
		institutions = list
		return list, err
	})
	if err != nil {
		return nil, false, err
	}
	if institutions == nil {
		institutions = []models.Institution{}
	}
	return institutions, hit, nil
}

// Users lists platform accounts for an administrator. A non-empty role keeps only the
// accounts holding it.
func (s *DirectoryService) Users(ctx context.Context, session *models.Session, role models.UserRole) ([]models.PlatformUser, bool, error) {
	if err := requireAdmin(session); err != nil {
		return nil, false, err
	}
	var users []models.PlatformUser
	hit, err := s.cached(ctx, usersCacheKey, &users, func() (interface{}, error) {
		list, err := s.repo.Users(ctx)
		users = list
		return list, err
	})
	if err != nil {
		return nil, false, err
	}

	filtered := make([]models.PlatformUser, 0, len(users))
	for _, user := range users {
		if role != "" {
			if parsed, ok := models.ParseRole(user.Role.Name); !ok || parsed != role {
				continue
			}
		}
		filtered = append(filtered, user)
	}
	return filtered, hit, nil
}

// cached reads key into dest, falling back to load and storing its result. Cache faults
// only cost a platform call.
func (s *DirectoryService) cached(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) (bool, error) {
	hit, err := s.cache.Get(ctx, key, dest)
	if err == nil && hit {
		return true, nil
	}
	value, err := load()
	if err != nil {
		return false, err
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Debug("directory cache write failed", zap.String("key", key), zap.Error(err))
	}
	return false, nil
}

func requireAdmin(session *models.Session) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	if session.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators list platform records")
	}
	return nil
}
