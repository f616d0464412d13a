package storage

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 11, day, hour, minute, 0, 0, time.UTC)
}

func newEvent(owner string, start, end time.Time) *models.Event {
	return &models.Event{
		OwnerID: owner,
		Title:   "Viva",
		Start:   start,
		End:     end,
		Color:   models.DefaultEventColor,
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db))

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestRunMigrations_RejectsModifiedStep(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Exec("UPDATE schema_migrations SET checksum = 'edited' WHERE version = 1")
	require.NoError(t, err)

	err = RunMigrations(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_init.sql")
}

func TestLoadMigrations(t *testing.T) {
	steps, err := loadMigrations(fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 10;")},
		"migrations/002_next.sql":  {Data: []byte("SELECT 2;")},
		"migrations/README.md":     {Data: []byte("ignored")},
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 2, steps[0].Version)
	assert.Equal(t, 10, steps[1].Version)
	assert.Len(t, steps[0].Checksum, 64)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/init.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err, "missing version prefix")

	_, err = loadMigrations(fstest.MapFS{
		"migrations/003_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/003_b.sql": {Data: []byte("SELECT 2;")},
	})
	assert.Error(t, err, "duplicate version")
}

func TestEventRepository_CreateAndSnapshot(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	ctx := context.Background()

	snap, err := repo.Snapshot(ctx, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.Empty(t, snap.Events)

	later := newEvent("ex-1", at(3, 14, 0), at(3, 15, 0))
	require.NoError(t, repo.Create(ctx, later, 0))
	earlier := newEvent("ex-1", at(3, 9, 0), at(3, 10, 0))
	require.NoError(t, repo.Create(ctx, earlier, 1))
	require.NoError(t, repo.Create(ctx, newEvent("ex-2", at(3, 9, 0), at(3, 10, 0)), 0))

	assert.NotEmpty(t, later.ID)
	assert.NotEqual(t, later.ID, earlier.ID)

	snap, err = repo.Snapshot(ctx, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	require.Len(t, snap.Events, 2)
	assert.Equal(t, earlier.ID, snap.Events[0].ID)
	assert.True(t, at(3, 9, 0).Equal(snap.Events[0].Start))

	got, err := repo.GetByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, "Viva", got.Title)
	assert.True(t, at(3, 15, 0).Equal(got.End))
}

func TestEventRepository_StaleVersion(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newEvent("ex-1", at(3, 9, 0), at(3, 10, 0)), 0))

	// Both writers decided on version 0; the first one won.
	err := repo.Create(ctx, newEvent("ex-1", at(3, 9, 30), at(3, 10, 30)), 0)
	assert.ErrorIs(t, err, apperr.ErrStaleSnapshot)

	snap, err := repo.Snapshot(ctx, "ex-1")
	require.NoError(t, err)
	assert.Len(t, snap.Events, 1)
}

func TestEventRepository_UpdateChangesOwner(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	ctx := context.Background()

	e := newEvent("ex-1", at(3, 9, 0), at(3, 10, 0))
	require.NoError(t, repo.Create(ctx, e, 0))

	e.OwnerID = "ex-2"
	e.Title = "Viva (moved)"
	require.NoError(t, repo.Update(ctx, e, 0))

	from, err := repo.Snapshot(ctx, "ex-1")
	require.NoError(t, err)
	assert.Empty(t, from.Events)
	assert.Equal(t, int64(2), from.Version)

	to, err := repo.Snapshot(ctx, "ex-2")
	require.NoError(t, err)
	require.Len(t, to.Events, 1)
	assert.Equal(t, "Viva (moved)", to.Events[0].Title)
}

func TestEventRepository_UpdateMissing(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))

	err := repo.Update(context.Background(), &models.Event{ID: "nope", OwnerID: "ex-1"}, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEventRepository_DeleteAndList(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	ctx := context.Background()

	a := newEvent("ex-1", at(3, 9, 0), at(3, 10, 0))
	b := newEvent("ex-1", at(5, 9, 0), at(5, 10, 0))
	require.NoError(t, repo.Create(ctx, a, 0))
	require.NoError(t, repo.Create(ctx, b, 1))

	list, err := repo.ListByOwner(ctx, "ex-1", at(4, 0, 0), at(6, 0, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, err = repo.ListByOwner(ctx, "ex-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), apperr.ErrNotFound)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func release(examiner, start, end, status string) *models.ExamDutyRelease {
	return &models.ExamDutyRelease{
		ExaminerID: examiner,
		StartDate:  start,
		EndDate:    end,
		Reason:     "Conference",
		Status:     status,
	}
}

func TestReleaseRepository_SnapshotReturnsActiveOverlapping(t *testing.T) {
	repo := NewReleaseRepository(newTestDB(t))
	ctx := context.Background()

	fixtures := []*models.ExamDutyRelease{
		release("ex-1", "2026-11-10", "2026-11-12", models.ReleaseStatusPending),
		release("ex-2", "2026-11-12", "2026-11-14", models.ReleaseStatusApproved),
		release("ex-3", "2026-11-10", "2026-11-12", models.ReleaseStatusRejected),
		release("ex-4", "2026-11-13", "2026-11-14", models.ReleaseStatusPending),
		release("ex-5", "2026-11-01", "2026-11-02", models.ReleaseStatusDraft),
	}
	for i, f := range fixtures {
		require.NoError(t, repo.Create(ctx, f, int64(i)))
	}

	snap, err := repo.Snapshot(ctx, "2026-11-11", "2026-11-12")
	require.NoError(t, err)
	assert.Equal(t, int64(len(fixtures)), snap.Version)

	var examiners []string
	for _, r := range snap.Releases {
		examiners = append(examiners, r.ExaminerID)
	}
	assert.Equal(t, []string{"ex-1", "ex-2"}, examiners)
}

func TestReleaseRepository_UpdateStatus(t *testing.T) {
	repo := NewReleaseRepository(newTestDB(t))
	ctx := context.Background()

	r := release("ex-1", "2026-11-10", "2026-11-12", models.ReleaseStatusPending)
	replacement := "lect-2"
	r.ReplacementLecturerID = &replacement
	require.NoError(t, repo.Create(ctx, r, 0))

	decidedBy := "head-1"
	decidedAt := at(2, 12, 0)
	r.Status = models.ReleaseStatusApproved
	r.DecidedBy = &decidedBy
	r.DecidedAt = &decidedAt
	require.NoError(t, repo.UpdateStatus(ctx, r, models.ReleaseStatusPending, 1))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseStatusApproved, got.Status)
	assert.Equal(t, "lect-2", got.Replacement())
	require.NotNil(t, got.DecidedAt)
	assert.True(t, decidedAt.Equal(*got.DecidedAt))
	assert.Nil(t, got.ReassignmentConfirmedAt)

	// A second decision made on the pending state loses.
	r.Status = models.ReleaseStatusRejected
	err = repo.UpdateStatus(ctx, r, models.ReleaseStatusPending, 2)
	assert.ErrorIs(t, err, apperr.ErrStaleSnapshot)
}

func TestReleaseRepository_ListAndDrafts(t *testing.T) {
	repo := NewReleaseRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, release("ex-1", "2026-10-30", "2026-11-03", models.ReleaseStatusDraft), 0))
	require.NoError(t, repo.Create(ctx, release("ex-1", "2026-11-10", "2026-11-11", models.ReleaseStatusDraft), 1))
	require.NoError(t, repo.Create(ctx, release("ex-2", "2026-10-01", "2026-10-02", models.ReleaseStatusPending), 2))

	all, err := repo.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.List(ctx, "ex-1", models.ReleaseStatusDraft)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stale, err := repo.ListDraftsStartingBefore(ctx, "2026-11-02")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "2026-10-30", stale[0].StartDate)
}

func TestReleaseRepository_ApplyReassignment(t *testing.T) {
	db := newTestDB(t)
	events := NewEventRepository(db)
	releases := NewReleaseRepository(db)
	ctx := context.Background()

	moved := newEvent("ex-1", at(10, 9, 0), at(10, 10, 0))
	removed := newEvent("ex-1", at(10, 11, 0), at(10, 12, 0))
	require.NoError(t, events.Create(ctx, moved, 0))
	require.NoError(t, events.Create(ctx, removed, 1))

	r := release("ex-1", "2026-11-10", "2026-11-10", models.ReleaseStatusApproved)
	require.NoError(t, releases.Create(ctx, r, 0))

	plan := models.ReassignmentPlan{
		ReleaseID: r.ID,
		Moves: []models.EventMove{
			{EventID: moved.ID, ToOwnerID: "lect-2"},
			{EventID: removed.ID},
		},
		Versions: map[string]int64{"ex-1": 2, "lect-2": 0},
	}
	require.NoError(t, releases.ApplyReassignment(ctx, plan))

	ex, err := events.Snapshot(ctx, "ex-1")
	require.NoError(t, err)
	assert.Empty(t, ex.Events)

	lect, err := events.Snapshot(ctx, "lect-2")
	require.NoError(t, err)
	require.Len(t, lect.Events, 1)
	assert.Equal(t, moved.ID, lect.Events[0].ID)

	got, err := releases.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ReassignmentConfirmedAt)

	// Replaying the same plan finds every version moved on.
	assert.ErrorIs(t, releases.ApplyReassignment(ctx, plan), apperr.ErrStaleSnapshot)
}

func TestReleaseRepository_ApplyReassignmentIsAtomic(t *testing.T) {
	db := newTestDB(t)
	events := NewEventRepository(db)
	releases := NewReleaseRepository(db)
	ctx := context.Background()

	e := newEvent("ex-1", at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, events.Create(ctx, e, 0))

	r := release("ex-1", "2026-11-10", "2026-11-10", models.ReleaseStatusApproved)
	require.NoError(t, releases.Create(ctx, r, 0))

	// lect-2's schedule changed after the plan was computed.
	require.NoError(t, events.Create(ctx, newEvent("lect-2", at(11, 9, 0), at(11, 10, 0)), 0))

	err := releases.ApplyReassignment(ctx, models.ReassignmentPlan{
		ReleaseID: r.ID,
		Moves:     []models.EventMove{{EventID: e.ID, ToOwnerID: "lect-2"}},
		Versions:  map[string]int64{"ex-1": 1, "lect-2": 0},
	})
	assert.ErrorIs(t, err, apperr.ErrStaleSnapshot)

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "ex-1", got.OwnerID)
}

func TestLecturerRepository(t *testing.T) {
	repo := NewLecturerRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []models.Lecturer{
		{ID: "lect-2", FullName: "Ben Lecturer", Email: "ben@example.edu", Active: true},
		{ID: "lect-1", FullName: "Ada Examiner", Active: true},
	}))
	require.NoError(t, repo.Upsert(ctx, []models.Lecturer{
		{ID: "lect-2", FullName: "Ben Lecturer", Email: "ben@example.edu", Active: false},
	}))

	all, err := repo.ListLecturers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "lect-1", all[0].ID)
	assert.False(t, all[1].Active)

	got, err := repo.GetByID(ctx, "lect-2")
	require.NoError(t, err)
	assert.Equal(t, "ben@example.edu", got.Email)

	missing, err := repo.GetByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
