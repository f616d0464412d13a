package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// MockEventStore is a mock implementation of the EventStore interface
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventStore) Snapshot(ctx context.Context, ownerID string) (*models.OwnerEvents, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OwnerEvents), args.Error(1)
}

func (m *MockEventStore) Create(ctx context.Context, event *models.Event, expectedVersion int64) error {
	args := m.Called(ctx, event, expectedVersion)
	if args.Error(0) == nil && event.ID == "" {
		event.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockEventStore) Update(ctx context.Context, event *models.Event, expectedVersion int64) error {
	args := m.Called(ctx, event, expectedVersion)
	return args.Error(0)
}

func (m *MockEventStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventStore) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]models.Event, error) {
	args := m.Called(ctx, ownerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

// recordingNotifier collects broadcast actions.
type recordingNotifier struct {
	actions []string
}

func (n *recordingNotifier) BroadcastEventChanged(action string, event models.Event) {
	n.actions = append(n.actions, action+":"+event.ID)
}

func TestServiceCreate_Accepted(t *testing.T) {
	store := new(MockEventStore)
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, time.UTC, 3)
	ctx := context.Background()

	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{
		OwnerID: "examiner-1",
		Events:  []models.Event{event("first", "examiner-1", clock(8, 0), clock(9, 0))},
		Version: 4,
	}, nil)
	store.On("Create", ctx, mock.MatchedBy(func(e *models.Event) bool {
		return e.OwnerID == "examiner-1" && e.Title == "Viva: J. Smith"
	}), int64(4)).Return(nil)

	created, err := svc.Create(ctx, validCandidate())

	require.NoError(t, err)
	assert.Equal(t, "generated-id", created.ID)
	assert.Equal(t, []string{"created:generated-id"}, notifier.actions)
	store.AssertExpectations(t)
}

func TestServiceCreate_ValidationRejected(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)

	c := validCandidate()
	c.Title = "ab"

	_, err := svc.Create(context.Background(), c)

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{MsgTitleTooShort}, verr.Errors)
	store.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
}

func TestServiceCreate_Conflict(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()

	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{
		Events: []models.Event{event("first", "examiner-1", clock(10, 0), clock(11, 0))},
	}, nil)

	c := validCandidate()
	c.Start = "2026-11-03T10:30:00Z"
	c.End = "2026-11-03T11:30:00Z"

	_, err := svc.Create(ctx, c)

	var cerr *apperr.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"first"}, cerr.ConflictsWith)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceCreate_StaleSnapshotResolvesAgain(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()

	// First read: no events. A concurrent write lands an overlapping event
	// before our commit, so the second read must reject the candidate.
	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{Version: 1}, nil).Once()
	store.On("Create", ctx, mock.Anything, int64(1)).Return(apperr.ErrStaleSnapshot).Once()
	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{
		Events:  []models.Event{event("racer", "examiner-1", clock(10, 0), clock(10, 30))},
		Version: 2,
	}, nil).Once()

	_, err := svc.Create(ctx, validCandidate())

	var cerr *apperr.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"racer"}, cerr.ConflictsWith)
	store.AssertExpectations(t)
}

func TestServiceCreate_GivesUpAfterMaxAttempts(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 2)
	ctx := context.Background()

	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{Version: 1}, nil)
	store.On("Create", ctx, mock.Anything, int64(1)).Return(apperr.ErrStaleSnapshot)

	_, err := svc.Create(ctx, validCandidate())

	var inf *apperr.IntegrationFailure
	require.True(t, errors.As(err, &inf))
	assert.ErrorIs(t, err, apperr.ErrStaleSnapshot)
	store.AssertNumberOfCalls(t, "Create", 2)
}

func TestServiceCreate_StoreFailure(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()

	store.On("Snapshot", ctx, "examiner-1").Return(nil, errors.New("disk I/O error"))

	_, err := svc.Create(ctx, validCandidate())

	var inf *apperr.IntegrationFailure
	assert.True(t, errors.As(err, &inf))
}

func TestServiceMove_ExcludesItself(t *testing.T) {
	store := new(MockEventStore)
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, time.UTC, 3)
	ctx := context.Background()

	current := event("ev-1", "examiner-1", clock(10, 0), clock(11, 0))
	store.On("GetByID", ctx, "ev-1").Return(&current, nil)
	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{
		Events:  []models.Event{current},
		Version: 7,
	}, nil)
	store.On("Update", ctx, mock.MatchedBy(func(e *models.Event) bool {
		return e.ID == "ev-1" && e.Start.Equal(clock(10, 30)) && e.Title == current.Title
	}), int64(7)).Return(nil)

	moved, err := svc.Move(ctx, "ev-1", "2026-11-03T10:30:00Z", "2026-11-03T11:30:00Z")

	require.NoError(t, err)
	assert.Equal(t, clock(11, 30), moved.End.UTC())
	assert.Equal(t, []string{"moved:ev-1"}, notifier.actions)
	store.AssertExpectations(t)
}

func TestServiceMove_NotFound(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()

	store.On("GetByID", ctx, "missing").Return(nil, nil)

	_, err := svc.Move(ctx, "missing", "2026-11-03T10:30:00Z", "2026-11-03T11:30:00Z")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestServiceUpdate_KeepsOwnerWhenOmitted(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()

	current := event("ev-1", "examiner-1", clock(10, 0), clock(11, 0))
	store.On("GetByID", ctx, "ev-1").Return(&current, nil)
	store.On("Snapshot", ctx, "examiner-1").Return(&models.OwnerEvents{Events: []models.Event{current}}, nil)
	store.On("Update", ctx, mock.Anything, int64(0)).Return(nil)

	c := validCandidate()
	c.OwnerID = ""
	updated, err := svc.Update(ctx, "ev-1", c)

	require.NoError(t, err)
	assert.Equal(t, "examiner-1", updated.OwnerID)
	assert.Equal(t, "ev-1", updated.ID)
}

func TestServiceDelete(t *testing.T) {
	store := new(MockEventStore)
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, time.UTC, 3)
	ctx := context.Background()

	current := event("ev-1", "examiner-1", clock(10, 0), clock(11, 0))
	store.On("GetByID", ctx, "ev-1").Return(&current, nil)
	store.On("Delete", ctx, "ev-1").Return(nil)

	require.NoError(t, svc.Delete(ctx, "ev-1"))
	assert.Equal(t, []string{"deleted:ev-1"}, notifier.actions)
}

func TestServiceAgenda(t *testing.T) {
	store := new(MockEventStore)
	svc := NewService(store, nil, time.UTC, 3)
	ctx := context.Background()
	from, to := clock(0, 0), clock(0, 0).AddDate(0, 0, 7)

	store.On("ListByOwner", ctx, "examiner-1", from, to).Return([]models.Event{
		event("b", "examiner-1", clock(14, 0), clock(15, 0)),
		event("a", "examiner-1", clock(9, 0), clock(10, 0)),
	}, nil)

	agenda, err := svc.Agenda(ctx, "examiner-1", from, to)

	require.NoError(t, err)
	require.Len(t, agenda, 1)
	assert.Equal(t, []string{"a", "b"}, ids(agenda[0].Events))
}
