package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// EventRepository provides data access for schedule events.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const eventColumns = `id, owner_id, title, description, start_at, end_at, location, color, created_at, updated_at`

// GetByID retrieves an event by its ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// Snapshot reads all of an owner's events together with the version they
// were read at, inside one transaction.
func (r *EventRepository) Snapshot(ctx context.Context, ownerID string) (*models.OwnerEvents, error) {
	snap := &models.OwnerEvents{OwnerID: ownerID}

	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		version, err := currentVersion(ctx, tx, ownerScope(ownerID))
		if err != nil {
			return err
		}
		snap.Version = version

		rows, err := tx.QueryContext(ctx,
			"SELECT "+eventColumns+" FROM events WHERE owner_id = ? ORDER BY start_at, end_at, id",
			ownerID)
		if err != nil {
			return fmt.Errorf("querying events: %w", err)
		}
		defer rows.Close()

		snap.Events, err = scanEvents(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Create inserts a new event if the owner's schedule is still at
// expectedVersion.
func (r *EventRepository) Create(ctx context.Context, event *models.Event, expectedVersion int64) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		if err := advanceVersion(ctx, tx, ownerScope(event.OwnerID), expectedVersion); err != nil {
			return err
		}

		id := GenerateID()
		now := r.Now()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, event.OwnerID, event.Title, event.Description,
			formatTime(event.Start), formatTime(event.End),
			event.Location, event.Color, formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting event: %w", err)
		}

		event.ID = id
		event.CreatedAt = now
		event.UpdatedAt = now
		return nil
	})
}

// Update replaces an event if its (new) owner's schedule is still at
// expectedVersion. When the owner changes the previous owner's schedule
// version is bumped as well.
func (r *EventRepository) Update(ctx context.Context, event *models.Event, expectedVersion int64) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		var previousOwner string
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM events WHERE id = ?", event.ID).Scan(&previousOwner)
		if err == sql.ErrNoRows {
			return fmt.Errorf("event %s: %w", event.ID, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("querying event owner: %w", err)
		}

		if err := advanceVersion(ctx, tx, ownerScope(event.OwnerID), expectedVersion); err != nil {
			return err
		}
		if previousOwner != event.OwnerID {
			if err := touchVersion(ctx, tx, ownerScope(previousOwner)); err != nil {
				return err
			}
		}

		now := r.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE events SET
				owner_id = ?, title = ?, description = ?, start_at = ?, end_at = ?,
				location = ?, color = ?, updated_at = ?
			WHERE id = ?
		`,
			event.OwnerID, event.Title, event.Description,
			formatTime(event.Start), formatTime(event.End),
			event.Location, event.Color, formatTime(now), event.ID,
		)
		if err != nil {
			return fmt.Errorf("updating event: %w", err)
		}

		event.UpdatedAt = now
		return nil
	})
}

// Delete removes an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		var ownerID string
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM events WHERE id = ?", id).Scan(&ownerID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("event %s: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("querying event owner: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting event: %w", err)
		}
		return touchVersion(ctx, tx, ownerScope(ownerID))
	})
}

// ListByOwner returns an owner's events overlapping [from, to), ordered by
// start. A zero bound is open.
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE owner_id = ?"
	args := []any{ownerID}

	if !to.IsZero() {
		query += " AND start_at < ?"
		args = append(args, formatTime(to))
	}
	if !from.IsZero() {
		query += " AND end_at > ?"
		args = append(args, formatTime(from))
	}
	query += " ORDER BY start_at, end_at, id"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents scans rows into events.
func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.Start, &e.End,
			&e.Location, &e.Color, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
