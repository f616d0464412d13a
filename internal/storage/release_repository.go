package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// ReleaseRepository provides data access for exam duty releases.
type ReleaseRepository struct {
	BaseRepository
}

// NewReleaseRepository creates a new release repository.
func NewReleaseRepository(db *DB) *ReleaseRepository {
	return &ReleaseRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const releaseColumns = `id, examiner_id, start_date, end_date, reason, replacement_lecturer_id, status,
	decided_by, decided_at, reassignment_confirmed_at, created_at, updated_at`

// GetByID retrieves a release by its ID.
func (r *ReleaseRepository) GetByID(ctx context.Context, id string) (*models.ExamDutyRelease, error) {
	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+releaseColumns+" FROM exam_duty_releases WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying release: %w", err)
	}
	defer rows.Close()

	releases, err := scanReleases(rows)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, nil
	}
	return &releases[0], nil
}

// List returns releases, newest first. Empty filters match everything.
func (r *ReleaseRepository) List(ctx context.Context, examinerID, status string) ([]models.ExamDutyRelease, error) {
	query := "SELECT " + releaseColumns + " FROM exam_duty_releases WHERE 1 = 1"
	var args []any

	if examinerID != "" {
		query += " AND examiner_id = ?"
		args = append(args, examinerID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying releases: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// Snapshot returns the pending and approved releases whose date range
// overlaps [startDate, endDate], and the release table version.
func (r *ReleaseRepository) Snapshot(ctx context.Context, startDate, endDate string) (*models.ReleaseSnapshot, error) {
	snap := &models.ReleaseSnapshot{}

	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		version, err := currentVersion(ctx, tx, releasesScope)
		if err != nil {
			return err
		}
		snap.Version = version

		// Dates are stored as YYYY-MM-DD, so text comparison orders them.
		rows, err := tx.QueryContext(ctx, `
			SELECT `+releaseColumns+` FROM exam_duty_releases
			WHERE status IN (?, ?) AND start_date <= ? AND end_date >= ?
			ORDER BY start_date, id
		`, models.ReleaseStatusPending, models.ReleaseStatusApproved, endDate, startDate)
		if err != nil {
			return fmt.Errorf("querying active releases: %w", err)
		}
		defer rows.Close()

		snap.Releases, err = scanReleases(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Create inserts a new release if the release table is still at
// expectedVersion.
func (r *ReleaseRepository) Create(ctx context.Context, rel *models.ExamDutyRelease, expectedVersion int64) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		if err := advanceVersion(ctx, tx, releasesScope, expectedVersion); err != nil {
			return err
		}

		id := GenerateID()
		now := r.Now()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO exam_duty_releases (`+releaseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, rel.ExaminerID, rel.StartDate, rel.EndDate, rel.Reason,
			rel.ReplacementLecturerID, rel.Status, rel.DecidedBy,
			formatTimePtr(rel.DecidedAt), formatTimePtr(rel.ReassignmentConfirmedAt),
			formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("inserting release: %w", err)
		}

		rel.ID = id
		rel.CreatedAt = now
		rel.UpdatedAt = now
		return nil
	})
}

// UpdateStatus stores rel's status and decision fields if the release is
// still in fromStatus and the release table is still at expectedVersion.
func (r *ReleaseRepository) UpdateStatus(ctx context.Context, rel *models.ExamDutyRelease, fromStatus string, expectedVersion int64) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		if err := advanceVersion(ctx, tx, releasesScope, expectedVersion); err != nil {
			return err
		}

		now := r.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE exam_duty_releases
			SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`,
			rel.Status, rel.DecidedBy, formatTimePtr(rel.DecidedAt), formatTime(now),
			rel.ID, fromStatus,
		)
		if err != nil {
			return fmt.Errorf("updating release status: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating release status: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("release %s is no longer %s: %w", rel.ID, fromStatus, apperr.ErrStaleSnapshot)
		}

		rel.UpdatedAt = now
		return nil
	})
}

// ListDraftsStartingBefore returns drafts whose start date is before day.
func (r *ReleaseRepository) ListDraftsStartingBefore(ctx context.Context, day string) ([]models.ExamDutyRelease, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+releaseColumns+` FROM exam_duty_releases
		WHERE status = ? AND start_date < ?
		ORDER BY start_date, id
	`, models.ReleaseStatusDraft, day)
	if err != nil {
		return nil, fmt.Errorf("querying stale drafts: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// ApplyReassignment hands displaced events to their new owners (or removes
// them) and marks the release's reassignment as confirmed, all in one
// transaction. It fails with apperr.ErrStaleSnapshot if any owner schedule
// in the plan changed, or the release is no longer awaiting confirmation.
func (r *ReleaseRepository) ApplyReassignment(ctx context.Context, plan models.ReassignmentPlan) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		for ownerID, version := range plan.Versions {
			if err := advanceVersion(ctx, tx, ownerScope(ownerID), version); err != nil {
				return err
			}
		}

		now := r.Now()
		for _, m := range plan.Moves {
			var (
				res sql.Result
				err error
			)
			if m.ToOwnerID == "" {
				res, err = tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", m.EventID)
			} else {
				res, err = tx.ExecContext(ctx,
					"UPDATE events SET owner_id = ?, updated_at = ? WHERE id = ?",
					m.ToOwnerID, formatTime(now), m.EventID)
			}
			if err != nil {
				return fmt.Errorf("reassigning event %s: %w", m.EventID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("event %s vanished: %w", m.EventID, apperr.ErrStaleSnapshot)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE exam_duty_releases
			SET reassignment_confirmed_at = ?, updated_at = ?
			WHERE id = ? AND status = ? AND reassignment_confirmed_at IS NULL
		`, formatTime(now), formatTime(now), plan.ReleaseID, models.ReleaseStatusApproved)
		if err != nil {
			return fmt.Errorf("confirming reassignment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("release %s already reassigned: %w", plan.ReleaseID, apperr.ErrStaleSnapshot)
		}

		return touchVersion(ctx, tx, releasesScope)
	})
}

// scanReleases scans rows into releases.
func scanReleases(rows *sql.Rows) ([]models.ExamDutyRelease, error) {
	var releases []models.ExamDutyRelease
	for rows.Next() {
		var rel models.ExamDutyRelease
		if err := rows.Scan(
			&rel.ID, &rel.ExaminerID, &rel.StartDate, &rel.EndDate, &rel.Reason,
			&rel.ReplacementLecturerID, &rel.Status, &rel.DecidedBy, &rel.DecidedAt,
			&rel.ReassignmentConfirmedAt, &rel.CreatedAt, &rel.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning release: %w", err)
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}
