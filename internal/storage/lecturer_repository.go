package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viva-scheduler/backend/internal/storage/models"
)

// LecturerRepository provides read access to the staff directory and the
// seeding used at startup.
type LecturerRepository struct {
	BaseRepository
}

// NewLecturerRepository creates a new lecturer repository.
func NewLecturerRepository(db *DB) *LecturerRepository {
	return &LecturerRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// ListLecturers returns the whole directory ordered by name.
func (r *LecturerRepository) ListLecturers(ctx context.Context) ([]models.Lecturer, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, full_name, email, active FROM lecturers ORDER BY full_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying lecturers: %w", err)
	}
	defer rows.Close()

	var lecturers []models.Lecturer
	for rows.Next() {
		var l models.Lecturer
		if err := rows.Scan(&l.ID, &l.FullName, &l.Email, &l.Active); err != nil {
			return nil, fmt.Errorf("scanning lecturer: %w", err)
		}
		lecturers = append(lecturers, l)
	}

	return lecturers, rows.Err()
}

// GetByID retrieves a lecturer by ID.
func (r *LecturerRepository) GetByID(ctx context.Context, id string) (*models.Lecturer, error) {
	l := &models.Lecturer{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, full_name, email, active FROM lecturers WHERE id = ?
	`, id).Scan(&l.ID, &l.FullName, &l.Email, &l.Active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying lecturer: %w", err)
	}

	return l, nil
}

// Upsert inserts or refreshes directory entries.
func (r *LecturerRepository) Upsert(ctx context.Context, lecturers []models.Lecturer) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		now := formatTime(r.Now())
		for _, l := range lecturers {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO lecturers (id, full_name, email, active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					full_name = excluded.full_name,
					email = excluded.email,
					active = excluded.active,
					updated_at = excluded.updated_at
			`, l.ID, l.FullName, l.Email, l.Active, now, now)
			if err != nil {
				return fmt.Errorf("upserting lecturer %s: %w", l.ID, err)
			}
		}
		return nil
	})
}
