package service

import (
	"context"
	"strings"
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

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments []models.Assignment
	listErr     map[int64]error
	createErr   error
	// hidden assignments become visible only after a failed create, like a concurrent insert.
	hidden    []models.Assignment
	creates   int
	uploads   []int64
	uploadErr error
	nextID    int64
}

func (f *fakeAssignmentRepo) ListByMission(_ context.Context, missionID int64) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[missionID]; err != nil {
		return nil, err
	}
	var out []models.Assignment
	for _, assignment := range f.assignments {
		if assignment.MissionID == missionID {
			out = append(out, assignment)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, req models.CreateAssignment) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		f.assignments = append(f.assignments, f.hidden...)
		f.hidden = nil
		return nil, f.createErr
	}
	f.nextID++
	assignment := models.Assignment{
		ID:                  f.nextID,
		MissionID:           req.MissionID,
		StudentMembershipID: req.StudentMembershipID,
		Status:              models.AssignmentStatusInProgress,
	}
	f.assignments = append(f.assignments, assignment)
	return &assignment, nil
}

func (f *fakeAssignmentRepo) UploadEvidence(_ context.Context, id int64, file models.EvidenceFile) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, id)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return nil, nil
}

func (f *fakeAssignmentRepo) grade(id int64, points int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assignments {
		if f.assignments[i].ID == id {
			f.assignments[i].Status = models.AssignmentStatusFinalized
			f.assignments[i].Points = &points
		}
	}
}

func (f *fakeAssignmentRepo) count(missionID, membershipID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, assignment := range f.assignments {
		if assignment.MissionID == missionID && assignment.StudentMembershipID == membershipID {
			n++
		}
	}
	return n
}

func newTestAssignmentService(missions *fakeMissionRepo, assignments *fakeAssignmentRepo, journal journalRecorder) *AssignmentService {
	cache := newMemCache()
	return NewAssignmentService(AssignmentServiceParams{
		Store:       newTestMissionStore(missions, cache),
		Repo:        assignments,
		Cache:       NewCacheService(cache, nil, 0, zap.NewNop(), true),
		Journal:     journal,
		Logger:      zap.NewNop(),
		Concurrency: 2,
	})
}

func TestDeriveStudentView(t *testing.T) {
	open := models.Mission{ID: 7, Status: models.MissionStatusOpen}
	running := models.Mission{ID: 8, Status: models.MissionStatusInProgress}

	view, visible := DeriveStudentView(open, nil, 42)
	require.True(t, visible)
	assert.Equal(t, models.StudentMissionNotEnrolled, view.StudentStatus)
	assert.Equal(t, 0, view.Progress)
	assert.Nil(t, view.AssignmentID)

	_, visible = DeriveStudentView(running, []models.Assignment{{ID: 1, MissionID: 8, StudentMembershipID: 99}}, 42)
	assert.False(t, visible)

	for i := 0; i < 2; i++ {
		_, visible = DeriveStudentView(models.Mission{ID: 9, Status: models.MissionStatusFinalized}, nil, 42)
		assert.False(t, visible)
	}

	view, visible = DeriveStudentView(running, []models.Assignment{{ID: 5, MissionID: 8, StudentMembershipID: 42, Status: models.AssignmentStatusInProgress}}, 42)
	require.True(t, visible)
	assert.Equal(t, models.StudentMissionInProgress, view.StudentStatus)
	assert.Equal(t, 50, view.Progress)
	require.NotNil(t, view.AssignmentID)
	assert.Equal(t, int64(5), *view.AssignmentID)
}

func TestStudentMissionLifecycleScenario(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Title: "Reciclaje", Status: models.MissionStatusOpen}}}
	assignments := &fakeAssignmentRepo{}
	svc := newTestAssignmentService(missions, assignments, nil)
	session := studentSession(42)
	ctx := context.Background()

	board, err := svc.StudentBoard(ctx, session)
	require.NoError(t, err)
	require.Len(t, board.Available, 1)
	assert.Equal(t, models.StudentMissionNotEnrolled, board.Available[0].StudentStatus)
	assert.Equal(t, 0, board.Available[0].Progress)

	result, err := svc.Enroll(ctx, session, 7, 42)
	require.NoError(t, err)
	assert.True(t, result.Created)

	board, err = svc.StudentBoard(ctx, session)
	require.NoError(t, err)
	require.Len(t, board.Active, 1)
	assert.Empty(t, board.Available)
	assert.Equal(t, models.StudentMissionInProgress, board.Active[0].StudentStatus)
	assert.Equal(t, 50, board.Active[0].Progress)

	assignments.grade(result.Assignment.ID, 30)

	board, err = svc.StudentBoard(ctx, session)
	require.NoError(t, err)
	require.Len(t, board.Active, 1)
	assert.Equal(t, models.StudentMissionCompleted, board.Active[0].StudentStatus)
	assert.Equal(t, 100, board.Active[0].Progress)
	require.NotNil(t, board.Active[0].Points)
	assert.Equal(t, 30, *board.Active[0].Points)
}

func TestEnrollIsIdempotent(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	assignments := &fakeAssignmentRepo{}
	journal := &recordingJournal{}
	svc := newTestAssignmentService(missions, assignments, journal)

	first, err := svc.Enroll(context.Background(), teacherSession(), 7, 42)
	require.NoError(t, err)
	second, err := svc.Enroll(context.Background(), teacherSession(), 7, 42)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Assignment.ID, second.Assignment.ID)
	assert.Equal(t, 1, assignments.creates)
	assert.Equal(t, 1, assignments.count(7, 42))
	assert.Equal(t, []models.JournalOutcome{models.JournalSuccess, models.JournalNoop}, journal.outcomes(models.JournalActionEnroll))
}

func TestEnrollResolvesDuplicateFailure(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	assignments := &fakeAssignmentRepo{
		createErr: appErrors.Clone(appErrors.ErrDuplicate, ""),
		hidden:    []models.Assignment{{ID: 90, MissionID: 7, StudentMembershipID: 42, Status: models.AssignmentStatusInProgress}},
	}
	svc := newTestAssignmentService(missions, assignments, nil)

	result, err := svc.Enroll(context.Background(), teacherSession(), 7, 42)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, int64(90), result.Assignment.ID)
	assert.Equal(t, 1, assignments.count(7, 42))
}

func TestEnrollSurfacesUnresolvedDuplicate(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	assignments := &fakeAssignmentRepo{createErr: appErrors.Clone(appErrors.ErrDuplicate, "")}
	svc := newTestAssignmentService(missions, assignments, nil)

	_, err := svc.Enroll(context.Background(), teacherSession(), 7, 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
	assert.Zero(t, assignments.count(7, 42))
}

func TestEnrollPreconditions(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 8, InstitutionID: 3, Status: models.MissionStatusInProgress}, {ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	assignments := &fakeAssignmentRepo{}
	svc := newTestAssignmentService(missions, assignments, nil)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, teacherSession(), 8, 42)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = svc.Enroll(ctx, teacherSession(), 7, 0)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Enroll(ctx, studentSession(42), 7, 43)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Enroll(ctx, teacherSession(), 99, 42)
	assert.ErrorIs(t, err, appErrors.ErrStaleReference)
	assert.Zero(t, assignments.creates)
}

func TestStudentBoardSkipsFailedMissions(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{
		{ID: 1, InstitutionID: 3, Status: models.MissionStatusOpen},
		{ID: 2, InstitutionID: 3, Status: models.MissionStatusOpen},
		{ID: 3, InstitutionID: 3, Status: models.MissionStatusInProgress},
	}}
	assignments := &fakeAssignmentRepo{
		assignments: []models.Assignment{{ID: 10, MissionID: 3, StudentMembershipID: 42, Status: models.AssignmentStatusInProgress}},
		listErr:     map[int64]error{2: appErrors.Clone(appErrors.ErrUpstream, "")},
	}
	svc := newTestAssignmentService(missions, assignments, nil)

	board, err := svc.StudentBoard(context.Background(), studentSession(42))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, board.Skipped)
	require.Len(t, board.Available, 1)
	assert.Equal(t, int64(1), board.Available[0].ID)
	require.Len(t, board.Active, 1)
	assert.Equal(t, int64(3), board.Active[0].ID)
}

func TestStudentBoardCancelledRequest(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 1, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	svc := newTestAssignmentService(missions, &fakeAssignmentRepo{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.fanOut(ctx, []models.Mission{{ID: 1}}, "test")
	// the fake ignores ctx, so a cancelled request only fails once a lookup errors
	assert.NoError(t, err)

	failing := newTestAssignmentService(missions, &fakeAssignmentRepo{listErr: map[int64]error{1: context.Canceled}}, nil)
	_, _, err = failing.fanOut(ctx, []models.Mission{{ID: 1}}, "test")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStudentBoardRequiresStudent(t *testing.T) {
	svc := newTestAssignmentService(&fakeMissionRepo{}, &fakeAssignmentRepo{}, nil)

	_, err := svc.StudentBoard(context.Background(), teacherSession())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.StudentBoard(context.Background(), studentSession(0))
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestSubmitEvidence(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusInProgress}}}
	assignments := &fakeAssignmentRepo{assignments: []models.Assignment{
		{ID: 5, MissionID: 7, StudentMembershipID: 42, Status: models.AssignmentStatusInProgress},
		{ID: 6, MissionID: 7, StudentMembershipID: 43, Status: models.AssignmentStatusFinalized},
	}}
	journal := &recordingJournal{}
	svc := newTestAssignmentService(missions, assignments, journal)
	ctx := context.Background()
	file := models.EvidenceFile{Name: "informe.pdf", ContentType: "application/pdf", Size: 4, Content: strings.NewReader("data")}

	updated, err := svc.SubmitEvidence(ctx, studentSession(42), 7, 5, file)
	require.NoError(t, err)
	require.NotNil(t, updated.Evidence)
	assert.Equal(t, "informe.pdf", *updated.Evidence)
	assert.Equal(t, models.AssignmentStatusInProgress, updated.Status)

	_, err = svc.SubmitEvidence(ctx, studentSession(42), 7, 6, file)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.SubmitEvidence(ctx, studentSession(43), 7, 6, file)
	assert.ErrorIs(t, err, appErrors.ErrFinalized)

	_, err = svc.SubmitEvidence(ctx, studentSession(42), 7, 99, file)
	assert.ErrorIs(t, err, appErrors.ErrStaleReference)

	_, err = svc.SubmitEvidence(ctx, studentSession(42), 7, 5, models.EvidenceFile{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, []int64{5}, assignments.uploads)
	assert.Equal(t, []models.JournalOutcome{models.JournalSuccess}, journal.outcomes(models.JournalActionEvidence))
}

func TestEnrollEvictsStudentDashboards(t *testing.T) {
	missions := &fakeMissionRepo{missions: []models.Mission{{ID: 7, InstitutionID: 3, Status: models.MissionStatusOpen}}}
	svc := newTestAssignmentService(missions, &fakeAssignmentRepo{}, nil)
	cache := svc.cache.repo.(*memCache)
	ctx := context.Background()

	student := studentSession(42)
	classmate := &models.Session{ID: "sess-other", UserID: 77, Role: models.RoleStudent, InstitutionID: 3, MembershipID: 43}
	seed := func() {
		for _, key := range []string{dashboardKey(student), dashboardKey(classmate), dashboardKey(teacherSession())} {
			require.NoError(t, cache.Set(ctx, key, dto.DashboardResponse{}, time.Minute))
		}
	}

	seed()
	_, err := svc.Enroll(ctx, student, 7, 42)
	require.NoError(t, err)
	assert.False(t, cache.has(dashboardKey(student)))
	assert.True(t, cache.has(dashboardKey(classmate)))
	assert.True(t, cache.has(dashboardKey(teacherSession())))

	seed()
	_, err = svc.Enroll(ctx, teacherSession(), 7, 43)
	require.NoError(t, err)
	assert.False(t, cache.has(dashboardKey(student)))
	assert.False(t, cache.has(dashboardKey(classmate)))
	assert.True(t, cache.has(dashboardKey(teacherSession())))
}
