package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viva-scheduler/backend/internal/apperr"
)

// Queryable represents a database connection that can execute queries.
// Both *sql.DB and *sql.Tx implement this interface.
type Queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	db *DB
}

// NewBaseRepository creates a new base repository with the given database connection.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Now returns the current time in UTC for database timestamps.
func (r *BaseRepository) Now() time.Time {
	return time.Now().UTC()
}

// Transaction executes a function within a database transaction.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return r.db.Transaction(ctx, fn)
}

// GenerateID creates a new UUID for use as a primary key.
func GenerateID() string {
	return uuid.NewString()
}

// timeLayout is fixed width so stored instants compare correctly as text.
// Its fraction matches models.TimestampPrecision.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// formatTime renders t for storage and for range predicates.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// Version scopes for optimistic concurrency.
const releasesScope = "releases"

func ownerScope(ownerID string) string {
	return "owner:" + ownerID
}

// currentVersion returns the version of scope, 0 if it was never written.
func currentVersion(ctx context.Context, q Queryable, scope string) (int64, error) {
	var version int64
	err := q.QueryRowContext(ctx,
		"SELECT version FROM schedule_versions WHERE scope = ?", scope,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying version of %s: %w", scope, err)
	}
	return version, nil
}

// advanceVersion bumps scope from expected to expected+1 and returns
// apperr.ErrStaleSnapshot if scope has moved on since it was read.
func advanceVersion(ctx context.Context, q Queryable, scope string, expected int64) error {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = q.ExecContext(ctx,
			"INSERT INTO schedule_versions (scope, version) VALUES (?, 1) ON CONFLICT(scope) DO NOTHING",
			scope)
	} else {
		res, err = q.ExecContext(ctx,
			"UPDATE schedule_versions SET version = version + 1 WHERE scope = ? AND version = ?",
			scope, expected)
	}
	if err != nil {
		return fmt.Errorf("advancing version of %s: %w", scope, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advancing version of %s: %w", scope, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", scope, apperr.ErrStaleSnapshot)
	}
	return nil
}

// touchVersion bumps scope unconditionally. Used by writes that were not
// decided on a snapshot, such as deletes.
func touchVersion(ctx context.Context, q Queryable, scope string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO schedule_versions (scope, version) VALUES (?, 1)
		ON CONFLICT(scope) DO UPDATE SET version = version + 1
	`, scope)
	if err != nil {
		return fmt.Errorf("touching version of %s: %w", scope, err)
	}
	return nil
}
