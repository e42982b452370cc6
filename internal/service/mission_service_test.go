package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/dto"
	"github.com/noah-isme/mission-gateway/internal/models"
	appErrors "github.com/noah-isme/mission-gateway/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type journalCall struct {
	Action   string
	EntityID string
	Outcome  models.JournalOutcome
}

type recordingJournal struct {
	mu    sync.Mutex
	calls []journalCall
}

func (r *recordingJournal) Record(_ context.Context, _ *models.Session, action, _ string, entityID string, outcome models.JournalOutcome, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, journalCall{Action: action, EntityID: entityID, Outcome: outcome})
}

func (r *recordingJournal) outcomes(action string) []models.JournalOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.JournalOutcome
	for _, call := range r.calls {
		if call.Action == action {
			out = append(out, call.Outcome)
		}
	}
	return out
}

type fakeMissionRepo struct {
	mu        sync.Mutex
	missions  []models.Mission
	listErr   map[models.MissionStatus]error
	updateErr error
	deleteErr error
	updates   []models.MissionUpdate
	deleted   []int64
	lists     int
}

func (f *fakeMissionRepo) ListByStatus(_ context.Context, institutionID int64, status models.MissionStatus) ([]models.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if err := f.listErr[status]; err != nil {
		return nil, err
	}
	var out []models.Mission
	for _, mission := range f.missions {
		if mission.InstitutionID != institutionID {
			continue
		}
		if status == "" || mission.Status == status {
			out = append(out, mission)
		}
	}
	return out, nil
}

func (f *fakeMissionRepo) Update(_ context.Context, id int64, update models.MissionUpdate) (*models.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.missions {
		if f.missions[i].ID != id {
			continue
		}
		if update.Status != nil {
			f.missions[i].Status = *update.Status
		}
		if update.Title != nil {
			f.missions[i].Title = *update.Title
		}
		if update.Description != nil {
			f.missions[i].Description = *update.Description
		}
		return nil, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "")
}

func (f *fakeMissionRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMissionRepo) status(id int64) models.MissionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mission := range f.missions {
		if mission.ID == id {
			return mission.Status
		}
	}
	return ""
}

func teacherSession() *models.Session {
	return &models.Session{ID: "sess-teacher", UserID: 11, Role: models.RoleTeacher, InstitutionID: 3, MembershipID: 17}
}

func institutionSession() *models.Session {
	return &models.Session{ID: "sess-inst", UserID: 12, Role: models.RoleInstitution, InstitutionID: 3}
}

func studentSession(membershipID int64) *models.Session {
	return &models.Session{ID: "sess-student", UserID: 42, Role: models.RoleStudent, InstitutionID: 3, MembershipID: membershipID}
}

func newTestMissionStore(repo *fakeMissionRepo, cache *memCache) *MissionStore {
	cacheSvc := NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	return NewMissionStore(repo, cacheSvc, nil, time.Minute, zap.NewNop())
}

func TestNextStatesTable(t *testing.T) {
	assert.Equal(t, []models.MissionStatus{models.MissionStatusOpen}, NextStates(models.MissionStatusInReview))
	assert.ElementsMatch(t, []models.MissionStatus{models.MissionStatusInProgress, models.MissionStatusFinalized}, NextStates(models.MissionStatusOpen))
	assert.Equal(t, []models.MissionStatus{models.MissionStatusFinalized}, NextStates(models.MissionStatusInProgress))
	assert.Empty(t, NextStates(models.MissionStatusFinalized))
	assert.Empty(t, NextStates("UNKNOWN"))

	next := NextStates(models.MissionStatusOpen)
	next[0] = models.MissionStatusInReview
	assert.NotContains(t, NextStates(models.MissionStatusOpen), models.MissionStatusInReview)
}

func TestTransitionsOnlyFollowTable(t *testing.T) {
	for _, from := range models.MissionStatuses {
		for _, to := range models.MissionStatuses {
			allowed := false
			for _, next := range NextStates(from) {
				if next == to {
					allowed = true
				}
			}
			assert.Equal(t, allowed, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestRoleMayTransition(t *testing.T) {
	assert.True(t, RoleMayTransition(models.RoleTeacher, models.MissionStatusInReview, models.MissionStatusOpen))
	assert.True(t, RoleMayTransition(models.RoleInstitution, models.MissionStatusInReview, models.MissionStatusOpen))
	assert.False(t, RoleMayTransition(models.RoleStudent, models.MissionStatusInReview, models.MissionStatusOpen))
	assert.False(t, RoleMayTransition(models.RoleTeacher, models.MissionStatusOpen, models.MissionStatusInProgress))
	assert.True(t, RoleMayTransition(models.RoleInstitution, models.MissionStatusOpen, models.MissionStatusInProgress))
	assert.True(t, RoleMayTransition(models.RoleInstitution, models.MissionStatusInProgress, models.MissionStatusFinalized))
}

func TestAvailableActions(t *testing.T) {
	review := models.Mission{ID: 1, Status: models.MissionStatusInReview}
	open := models.Mission{ID: 2, Status: models.MissionStatusOpen}
	running := models.Mission{ID: 3, Status: models.MissionStatusInProgress}
	done := models.Mission{ID: 4, Status: models.MissionStatusFinalized}

	assert.ElementsMatch(t, []models.MissionAction{models.MissionActionApprove, models.MissionActionEdit, models.MissionActionDiscard}, AvailableActions(review, models.RoleTeacher))
	assert.Empty(t, AvailableActions(review, models.RoleStudent))
	assert.Equal(t, []models.MissionAction{models.MissionActionEnroll}, AvailableActions(open, models.RoleTeacher))
	assert.ElementsMatch(t, []models.MissionAction{models.MissionActionEnroll, models.MissionActionStart, models.MissionActionClose}, AvailableActions(open, models.RoleInstitution))
	assert.Equal(t, []models.MissionAction{models.MissionActionClose}, AvailableActions(running, models.RoleInstitution))
	assert.Empty(t, AvailableActions(running, models.RoleTeacher))
	assert.Empty(t, AvailableActions(done, models.RoleInstitution))
}

func TestMissionServiceApprove(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Title: "Huerto", Status: models.MissionStatusInReview}}}
	cache := newMemCache()
	store := newTestMissionStore(repo, cache)
	journal := &recordingJournal{}
	svc := NewMissionService(store, repo, journal, nil, zap.NewNop())

	_, _, err := store.List(context.Background(), 3, models.MissionStatusInReview)
	require.NoError(t, err)
	require.True(t, cache.has(missionCacheKey(3, models.MissionStatusInReview)))

	mission, err := svc.Approve(context.Background(), teacherSession(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusOpen, mission.Status)
	assert.Equal(t, models.MissionStatusOpen, repo.status(7))
	assert.False(t, cache.has(missionCacheKey(3, models.MissionStatusInReview)))
	assert.Equal(t, []models.JournalOutcome{models.JournalSuccess}, journal.outcomes(models.JournalActionApprove))
}

func TestMissionServiceRejectsIllegalTransitionBeforeDispatch(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusInReview}}}
	svc := NewMissionService(newTestMissionStore(repo, newMemCache()), repo, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), institutionSession(), 7, dto.TransitionMissionRequest{Status: models.MissionStatusFinalized})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Empty(t, repo.updates)
	assert.Equal(t, models.MissionStatusInReview, repo.status(7))
}

func TestMissionServiceForbidsTeacherInstitutionalTransition(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	svc := NewMissionService(newTestMissionStore(repo, newMemCache()), repo, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), teacherSession(), 7, dto.TransitionMissionRequest{Status: models.MissionStatusInProgress})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Empty(t, repo.updates)

	mission, err := svc.Transition(context.Background(), institutionSession(), 7, dto.TransitionMissionRequest{Status: models.MissionStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusInProgress, mission.Status)
}

func TestMissionServiceTransitionValidation(t *testing.T) {
	repo := &fakeMissionRepo{}
	svc := NewMissionService(newTestMissionStore(repo, newMemCache()), repo, nil, nil, zap.NewNop())

	_, err := svc.Transition(context.Background(), institutionSession(), 7, dto.TransitionMissionRequest{Status: "ARCHIVADA"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, repo.lists)
}

func TestMissionServiceStaleReference(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{{ID: 8, InstitutionID: 3, Status: models.MissionStatusInReview}}}
	cache := newMemCache()
	svc := NewMissionService(newTestMissionStore(repo, cache), repo, nil, nil, zap.NewNop())

	_, err := svc.Approve(context.Background(), teacherSession(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStaleReference)
	assert.Empty(t, repo.updates)
	assert.False(t, cache.has(missionCacheKey(3, "")))
}

func TestMissionServiceUpdateFailureKeepsCache(t *testing.T) {
	repo := &fakeMissionRepo{
		missions:  []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusInReview}},
		updateErr: appErrors.Clone(appErrors.ErrUpstream, ""),
	}
	cache := newMemCache()
	journal := &recordingJournal{}
	svc := NewMissionService(newTestMissionStore(repo, cache), repo, journal, nil, zap.NewNop())

	_, err := svc.Approve(context.Background(), teacherSession(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
	assert.True(t, cache.has(missionCacheKey(3, "")))
	assert.Equal(t, []models.JournalOutcome{models.JournalFailed}, journal.outcomes(models.JournalActionApprove))
}

func TestMissionServiceEditAndDiscardOnlyInReview(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{
		{ID: 7, InstitutionID: 3, Title: "Antes", Status: models.MissionStatusInReview},
		{ID: 9, InstitutionID: 3, Title: "Publicada", Status: models.MissionStatusOpen},
	}}
	svc := NewMissionService(newTestMissionStore(repo, newMemCache()), repo, nil, nil, zap.NewNop())
	ctx := context.Background()

	edited, err := svc.Edit(ctx, teacherSession(), 7, dto.EditMissionRequest{Title: "Despues", Description: "Nueva descripcion"})
	require.NoError(t, err)
	assert.Equal(t, "Despues", edited.Title)
	assert.Equal(t, models.MissionStatusInReview, edited.Status)

	_, err = svc.Edit(ctx, teacherSession(), 9, dto.EditMissionRequest{Title: "x", Description: "y"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	err = svc.Discard(ctx, teacherSession(), 9)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Discard(ctx, teacherSession(), 7))
	assert.Equal(t, []int64{7}, repo.deleted)

	err = svc.Discard(ctx, studentSession(5), 7)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestMissionServiceActions(t *testing.T) {
	repo := &fakeMissionRepo{missions: []models.Mission{{ID: 9, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	svc := NewMissionService(newTestMissionStore(repo, newMemCache()), repo, nil, nil, zap.NewNop())

	resp, err := svc.Actions(context.Background(), institutionSession(), 9)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.MissionStatus{models.MissionStatusInProgress, models.MissionStatusFinalized}, resp.NextStates)

	resp, err = svc.Actions(context.Background(), teacherSession(), 9)
	require.NoError(t, err)
	assert.Empty(t, resp.NextStates)
	assert.Equal(t, []models.MissionAction{models.MissionActionEnroll}, resp.Actions)
}

func TestMissionStoreListManyIsolatesFailures(t *testing.T) {
	repo := &fakeMissionRepo{
		missions: []models.Mission{
			{ID: 1, InstitutionID: 3, Status: models.MissionStatusOpen},
			{ID: 2, InstitutionID: 3, Status: models.MissionStatusInProgress},
		},
		listErr: map[models.MissionStatus]error{models.MissionStatusFinalized: appErrors.Clone(appErrors.ErrUpstream, "")},
	}
	store := newTestMissionStore(repo, newMemCache())

	missions, err := store.ListMany(context.Background(), 3, boardStatuses...)
	require.NoError(t, err)
	assert.Len(t, missions, 2)

	repo.listErr = map[models.MissionStatus]error{
		models.MissionStatusInReview: appErrors.Clone(appErrors.ErrUpstream, ""),
	}
	_, err = store.ListMany(context.Background(), 3, models.MissionStatusInReview)
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
}
