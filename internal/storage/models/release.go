package models

import (
	"time"
)

// ExamDutyRelease is an examiner's request to be released from exam duty
// for a range of calendar days, optionally naming a replacement lecturer.
type ExamDutyRelease struct {
	ID                      string     `json:"id"`
	ExaminerID              string     `json:"examinerId"`
	StartDate               string     `json:"startDate"` // Format: "2006-01-02"
	EndDate                 string     `json:"endDate"`
	Reason                  string     `json:"reason"`
	ReplacementLecturerID   *string    `json:"replacementLecturerId,omitempty"`
	Status                  string     `json:"status"`
	DecidedBy               *string    `json:"decidedBy,omitempty"`
	DecidedAt               *time.Time `json:"decidedAt,omitempty"`
	ReassignmentConfirmedAt *time.Time `json:"reassignmentConfirmedAt,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// Release status constants
const (
	ReleaseStatusDraft     = "draft"     // Being edited by the requester
	ReleaseStatusPending   = "pending"   // Submitted, awaiting a decision
	ReleaseStatusApproved  = "approved"  // Terminal
	ReleaseStatusRejected  = "rejected"  // Terminal
	ReleaseStatusWithdrawn = "withdrawn" // Terminal
)

// DateLayout is the wire and storage format of release dates.
const DateLayout = "2006-01-02"

// IsTerminal returns true once no further transition is possible.
func (r *ExamDutyRelease) IsTerminal() bool {
	switch r.Status {
	case ReleaseStatusApproved, ReleaseStatusRejected, ReleaseStatusWithdrawn:
		return true
	}
	return false
}

// IsActive returns true for releases that block the examiner's and the
// replacement's availability.
func (r *ExamDutyRelease) IsActive() bool {
	return r.Status == ReleaseStatusPending || r.Status == ReleaseStatusApproved
}

// Replacement returns the replacement lecturer ID or empty string.
func (r *ExamDutyRelease) Replacement() string {
	if r.ReplacementLecturerID == nil {
		return ""
	}
	return *r.ReplacementLecturerID
}

// ValidReleaseStatus reports whether s names a known status.
func ValidReleaseStatus(s string) bool {
	switch s {
	case ReleaseStatusDraft, ReleaseStatusPending, ReleaseStatusApproved,
		ReleaseStatusRejected, ReleaseStatusWithdrawn:
		return true
	}
	return false
}

// ReleaseSnapshot holds the active releases overlapping a date range and
// the version of the release table they were read at.
type ReleaseSnapshot struct {
	Releases []ExamDutyRelease
	Version  int64
}

// EventMove hands one event to another owner. An empty ToOwnerID removes
// the event instead.
type EventMove struct {
	EventID   string
	ToOwnerID string
}

// ReassignmentPlan is the all-or-nothing write confirming the reassignment
// of an approved release. Versions holds the owner schedule versions the
// plan was computed from.
type ReassignmentPlan struct {
	ReleaseID string
	Moves     []EventMove
	Versions  map[string]int64
}
