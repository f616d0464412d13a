package release

import (
	"fmt"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// unavailability explains why lecturerID cannot replace examinerID over rng,
// or returns "" if it can. The release being decided (selfID) is ignored.
func unavailability(lecturerID, examinerID, selfID string, rng interval.Interval, snap Snapshot) string {
	if lecturerID == examinerID {
		return "is the requesting examiner"
	}

	lecturer := findLecturer(snap.Lecturers, lecturerID)
	if lecturer == nil {
		return "is not in the staff directory"
	}
	if !lecturer.Active {
		return "is not an active member of staff"
	}

	for _, other := range snap.Releases {
		if other.ID == selfID || !other.IsActive() {
			continue
		}
		if !overlapsRange(other, rng, snap.location()) {
			continue
		}
		if other.ExaminerID == lecturerID {
			return fmt.Sprintf("is released from duty from %s to %s", other.StartDate, other.EndDate)
		}
		if other.Replacement() == lecturerID {
			return fmt.Sprintf("already replaces %s from %s to %s", other.ExaminerID, other.StartDate, other.EndDate)
		}
	}

	return ""
}

// EligibleReplacements annotates every directory entry with whether it could
// replace examinerID from startDate to endDate. The examiner is listed as
// ineligible rather than omitted so the picker can explain why.
func EligibleReplacements(examinerID, startDate, endDate string, snap Snapshot) ([]models.LecturerAvailability, *apperr.GuardViolation) {
	rng, err := interval.WholeDays(startDate, endDate, snap.location())
	if err != nil {
		return nil, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid, "dates must be given as YYYY-MM-DD")
	}
	if !rng.End.After(rng.Start) {
		return nil, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid,
			"end date %s is before start date %s", endDate, startDate)
	}

	out := make([]models.LecturerAvailability, 0, len(snap.Lecturers))
	for _, l := range snap.Lecturers {
		reason := unavailability(l.ID, examinerID, "", rng, snap)
		out = append(out, models.LecturerAvailability{
			Lecturer:              l,
			IsEligibleReplacement: reason == "",
			Reason:                reason,
		})
	}
	return out, nil
}

func findLecturer(lecturers []models.Lecturer, id string) *models.Lecturer {
	for i := range lecturers {
		if lecturers[i].ID == id {
			return &lecturers[i]
		}
	}
	return nil
}
