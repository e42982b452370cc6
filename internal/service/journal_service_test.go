package service

import (
	"context"
	"errors"
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

type fakeJournalStore struct {
	mu         sync.Mutex
	inserted   []models.JournalEntry
	failFirst  int
	lastFilter models.JournalFilter
}

func (f *fakeJournalStore) Insert(_ context.Context, entry *models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return errors.New("connection reset")
	}
	f.inserted = append(f.inserted, *entry)
	return nil
}

func (f *fakeJournalStore) List(_ context.Context, filter models.JournalFilter) ([]models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeJournalStore) entries() []models.JournalEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.JournalEntry, len(f.inserted))
	copy(out, f.inserted)
	return out
}

func TestJournalServiceRecordsAsynchronously(t *testing.T) {
	store := &fakeJournalStore{failFirst: 1}
	svc := NewJournalService(store, nil, JournalServiceConfig{Workers: 1, Retries: 2, RetryDelay: 5 * time.Millisecond}, nil, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Record(context.Background(), teacherSession(), models.JournalActionApprove, models.JournalEntityMission, "7", models.JournalSuccess, map[string]interface{}{"to": "CONVOCATORIA"})

	require.Eventually(t, func() bool { return len(store.entries()) == 1 }, time.Second, 5*time.Millisecond)
	entry := store.entries()[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, int64(3), entry.InstitutionID)
	assert.Equal(t, int64(11), entry.UserID)
	assert.Equal(t, models.RoleTeacher, entry.Role)
	require.NotNil(t, entry.EntityID)
	assert.Equal(t, "7", *entry.EntityID)
	assert.JSONEq(t, `{"to":"CONVOCATORIA"}`, string(entry.Detail))
}

func TestJournalServiceRecordBeforeStartDoesNotBlock(t *testing.T) {
	store := &fakeJournalStore{}
	svc := NewJournalService(store, nil, JournalServiceConfig{}, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		svc.Record(context.Background(), nil, models.JournalActionLogin, models.JournalEntitySession, "", models.JournalSuccess, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("record blocked")
	}
	assert.Empty(t, store.entries())
}

func TestJournalServiceListScoping(t *testing.T) {
	store := &fakeJournalStore{}
	svc := NewJournalService(store, nil, JournalServiceConfig{}, nil, zap.NewNop())
	ctx := context.Background()

	entries, err := svc.List(ctx, teacherSession(), dto.JournalQuery{Entity: models.JournalEntityMission, EntityID: "7"})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Equal(t, int64(3), store.lastFilter.InstitutionID)
	assert.Equal(t, "7", store.lastFilter.EntityID)

	_, err = svc.List(ctx, &models.Session{ID: "a", Role: models.RoleAdmin}, dto.JournalQuery{})
	require.NoError(t, err)
	assert.Zero(t, store.lastFilter.InstitutionID)

	_, err = svc.List(ctx, studentSession(42), dto.JournalQuery{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.List(ctx, teacherSession(), dto.JournalQuery{Entity: "GRADE"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestJournalServiceDisabled(t *testing.T) {
	var svc *JournalService
	svc.Start(context.Background())
	svc.Record(context.Background(), teacherSession(), models.JournalActionEdit, models.JournalEntityMission, "1", models.JournalSuccess, nil)
	svc.Stop()

	_, err := svc.List(context.Background(), teacherSession(), dto.JournalQuery{})
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}
