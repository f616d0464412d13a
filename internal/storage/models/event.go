// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Event is a calendar entry (viva slot, exam duty, meeting) owned by one examiner or lecturer.
type Event struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Event field limits.
const (
	TitleMinLength       = 3
	TitleMaxLength       = 50
	DescriptionMaxLength = 500
	LocationMaxLength    = 100
	MaxEventDuration     = 24 * time.Hour
)

// TimestampPrecision is the resolution at which event instants are
// compared and stored.
const TimestampPrecision = time.Microsecond

// DefaultEventColor is used for imported events that carry no color.
const DefaultEventColor = "#3174ad"

// OwnerEvents is a snapshot of one owner's events together with the owner's
// schedule version at the time of the read.
type OwnerEvents struct {
	OwnerID string
	Events  []Event
	Version int64
}
