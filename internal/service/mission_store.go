package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/platform"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type missionReader interface {
	ListByStatus(ctx context.Context, institutionID int64, status models.MissionStatus) ([]models.Mission, error)
}

// MissionStore holds mission listings per institution and status, backed by the platform
// with a refreshable cache in front.
type MissionStore struct {
	repo    missionReader
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewMissionStore constructs the store.
func NewMissionStore(repo missionReader, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *MissionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissionStore{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

func missionCacheKey(institutionID int64, status models.MissionStatus) string {
	if status == "" {
		status = "ALL"
	}
	return fmt.Sprintf("missions:%d:%s", institutionID, status)
}

// List returns an institution's missions in one status and whether the cache served them.
// An empty status lists every mission.
func (s *MissionStore) List(ctx context.Context, institutionID int64, status models.MissionStatus) ([]models.Mission, bool, error) {
	key := missionCacheKey(institutionID, status)
	var cached []models.Mission
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}
	missions, err := s.load(ctx, institutionID, status)
	if err != nil {
		return nil, false, err
	}
	return missions, false, nil
}

func (s *MissionStore) load(ctx context.Context, institutionID int64, status models.MissionStatus) ([]models.Mission, error) {
	missions, err := s.repo.ListByStatus(ctx, institutionID, status)
	if err != nil {
		return nil, err
	}
	if missions == nil {
		missions = []models.Mission{}
	}
	_ = s.cache.Set(ctx, missionCacheKey(institutionID, status), missions, s.ttl)
	return missions, nil
}

// ListMany reads several statuses concurrently and concatenates them in the order given.
// A status whose read fails is logged and left out; the call only fails when every read fails.
func (s *MissionStore) ListMany(ctx context.Context, institutionID int64, statuses ...models.MissionStatus) ([]models.Mission, error) {
	results := make([][]models.Mission, len(statuses))
	failures := make([]error, len(statuses))

	g, gctx := errgroup.WithContext(ctx)
	for i, status := range statuses {
		i, status := i, status
		g.Go(func() error {
			missions, _, err := s.List(gctx, institutionID, status)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				return nil
			}
			results[i] = missions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.Mission
	failed := 0
	for i, err := range failures {
		if err != nil {
			failed++
			s.metrics.RecordFanoutSkip("mission_status")
			s.logger.Warn("mission listing failed",
				zap.Int64("institution_id", institutionID),
				zap.String("status", string(statuses[i])),
				zap.Error(err))
			continue
		}
		out = append(out, results[i]...)
	}
	if len(statuses) > 0 && failed == len(statuses) {
		return nil, failures[0]
	}
	if out == nil {
		out = []models.Mission{}
	}
	return out, nil
}

// Find reads the authoritative copy of a mission. A mission the platform no longer
// lists is a stale reference and drops the institution's cached listings.
func (s *MissionStore) Find(ctx context.Context, institutionID, missionID int64) (*models.Mission, error) {
	missions, err := s.load(ctx, institutionID, "")
	if err != nil {
		if platform.IsNotFound(err) {
			s.Invalidate(ctx, institutionID)
			return nil, appErrors.Wrap(err, appErrors.ErrStaleReference.Code, appErrors.ErrStaleReference.Status, "mission no longer exists")
		}
		return nil, err
	}
	for i := range missions {
		if missions[i].ID == missionID {
			return &missions[i], nil
		}
	}
	s.Invalidate(ctx, institutionID)
	return nil, appErrors.Clone(appErrors.ErrStaleReference, "mission no longer exists")
}

// Invalidate drops every cached listing of an institution and the dashboards derived from them.
func (s *MissionStore) Invalidate(ctx context.Context, institutionID int64) {
	for _, pattern := range []string{fmt.Sprintf("missions:%d:*", institutionID), dashboardPattern(institutionID)} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("mission cache invalidation failed", zap.Int64("institution_id", institutionID), zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// staleOr converts a platform not-found on a mission id into a stale reference and forces a refresh.
func (s *MissionStore) staleOr(ctx context.Context, institutionID int64, err error) error {
	if err == nil {
		return nil
	}
	if platform.IsNotFound(err) || errors.Is(err, appErrors.ErrStaleReference) {
		s.Invalidate(ctx, institutionID)
		return appErrors.Wrap(err, appErrors.ErrStaleReference.Code, appErrors.ErrStaleReference.Status, "mission no longer exists")
	}
	return err
}
