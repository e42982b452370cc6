package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/repository"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type studentBoardProvider interface {
	StudentBoard(ctx context.Context, session *models.Session) (*models.StudentBoard, error)
}

type institutionRoster interface {
	InstitutionStudents(ctx context.Context, institutionID int64) ([]models.StudentMembership, error)
	InstitutionTeachers(ctx context.Context, institutionID int64) ([]models.TeacherMembership, error)
}

type platformCounter interface {
	Count(ctx context.Context, resource repository.Countable) (int64, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the read-only summary of each role.
type DashboardService struct {
	board   studentBoardProvider
	store   *MissionStore
	roster  institutionRoster
	counter platformCounter
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Board   studentBoardProvider
	Store   *MissionStore
	Roster  institutionRoster
	Counter platformCounter
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		board:   params.Board,
		store:   params.Store,
		roster:  params.Roster,
		counter: params.Counter,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

func dashboardPattern(institutionID int64) string {
	return fmt.Sprintf("dashboard:%d:*", institutionID)
}

func roleDashboardPattern(institutionID int64, role models.UserRole) string {
	return fmt.Sprintf("dashboard:%d:%s:*", institutionID, role)
}

func dashboardKey(session *models.Session) string {
	return fmt.Sprintf("dashboard:%d:%s:%d", session.InstitutionID, session.Role, session.UserID)
}

// Get returns the dashboard of the session's role and whether it came from cache.
// Summaries with degraded parts are served but not cached.
func (s *DashboardService) Get(ctx context.Context, session *models.Session) (*dto.DashboardResponse, bool, error) {
	if session == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	key := dashboardKey(session)
	var cached dto.DashboardResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return &cached, true, nil
	}

	resp := &dto.DashboardResponse{Role: session.Role, GeneratedAt: s.now().UTC()}
	complete := true
	var err error
	switch session.Role {
	case models.RoleStudent:
		resp.Student, err = s.student(ctx, session)
	case models.RoleTeacher:
		if err = requireInstitution(session); err == nil {
			resp.Teacher, complete = s.teacher(ctx, session.InstitutionID)
		}
	case models.RoleInstitution:
		if err = requireInstitution(session); err == nil {
			resp.Institution, complete = s.institution(ctx, session.InstitutionID)
		}
	case models.RoleAdmin:
		resp.Admin, complete = s.admin(ctx)
	default:
		err = appErrors.ErrForbidden
	}
	if err != nil {
		return nil, false, err
	}

	if complete {
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, false, nil
}

func (s *DashboardService) student(ctx context.Context, session *models.Session) (*dto.StudentDashboard, error) {
	board, err := s.board.StudentBoard(ctx, session)
	if err != nil {
		return nil, err
	}
	summary := &dto.StudentDashboard{}
	for _, view := range board.Active {
		switch view.StudentStatus {
		case models.StudentMissionInProgress:
			summary.InProgress++
		case models.StudentMissionCompleted:
			summary.Completed++
		}
		if view.Points != nil {
			summary.Points += *view.Points
		}
	}
	return summary, nil
}

func (s *DashboardService) teacher(ctx context.Context, institutionID int64) (*dto.TeacherDashboard, bool) {
	summary := &dto.TeacherDashboard{}
	complete := true
	if missions, _, err := s.store.List(ctx, institutionID, models.MissionStatusInReview); err != nil {
		s.logger.Warn("review queue count failed", zap.Int64("institution_id", institutionID), zap.Error(err))
		complete = false
	} else {
		summary.MissionsInReview = len(missions)
	}
	if students, err := s.roster.InstitutionStudents(ctx, institutionID); err != nil {
		s.logger.Warn("student count failed", zap.Int64("institution_id", institutionID), zap.Error(err))
		complete = false
	} else {
		summary.TotalStudents = len(students)
	}
	return summary, complete
}

// institution counts each figure concurrently; a failed count stays at zero.
func (s *DashboardService) institution(ctx context.Context, institutionID int64) (*dto.InstitutionDashboard, bool) {
	summary := &dto.InstitutionDashboard{}
	failed := make([]bool, 3)

	var g errgroup.Group
	g.Go(func() error {
		students, err := s.roster.InstitutionStudents(ctx, institutionID)
		if err != nil {
			s.logger.Warn("student count failed", zap.Int64("institution_id", institutionID), zap.Error(err))
			failed[0] = true
			return nil
		}
		summary.TotalStudents = len(students)
		return nil
	})
	g.Go(func() error {
		teachers, err := s.roster.InstitutionTeachers(ctx, institutionID)
		if err != nil {
			s.logger.Warn("teacher count failed", zap.Int64("institution_id", institutionID), zap.Error(err))
			failed[1] = true
			return nil
		}
		summary.TotalTeachers = len(teachers)
		return nil
	})
	g.Go(func() error {
		missions, _, err := s.store.List(ctx, institutionID, "")
		if err != nil {
			s.logger.Warn("mission count failed", zap.Int64("institution_id", institutionID), zap.Error(err))
			failed[2] = true
			return nil
		}
		summary.TotalMissions = len(missions)
		return nil
	})
	_ = g.Wait()

	return summary, !failed[0] && !failed[1] && !failed[2]
}

// admin reports platform totals; any failed count zeroes the whole summary.
func (s *DashboardService) admin(ctx context.Context) (*dto.AdminDashboard, bool) {
	resources := []repository.Countable{
		repository.CountInstitutions,
		repository.CountUsers,
		repository.CountTeachers,
		repository.CountStudents,
	}
	totals := make([]int64, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	for i, resource := range resources {
		i, resource := i, resource
		g.Go(func() error {
			total, err := s.counter.Count(gctx, resource)
			if err != nil {
				return fmt.Errorf("count %s: %w", resource, err)
			}
			totals[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("admin dashboard degraded", zap.Error(err))
		return &dto.AdminDashboard{}, false
	}
	return &dto.AdminDashboard{
		TotalInstitutions: totals[0],
		TotalUsers:        totals[1],
		TotalTeachers:     totals[2],
		TotalStudents:     totals[3],
	}, true
}
