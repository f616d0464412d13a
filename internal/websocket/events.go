package websocket

import (
	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastEventChanged sends an event.changed message.
func (b *EventBroadcaster) BroadcastEventChanged(action string, event models.Event) {
	payload := EventChangedPayload{
		Action:  action,
		EventID: event.ID,
		OwnerID: event.OwnerID,
		Title:   event.Title,
		Start:   event.Start,
		End:     event.End,
	}

	b.broadcast(NewMessage(TypeEventChanged, payload))
}

// BroadcastReleaseStatusChanged sends a release.status_changed message.
func (b *EventBroadcaster) BroadcastReleaseStatusChanged(r models.ExamDutyRelease, previousStatus string, affectedEventIDs []string) {
	payload := ReleaseStatusPayload{
		ReleaseID:        r.ID,
		ExaminerID:       r.ExaminerID,
		PreviousStatus:   previousStatus,
		NewStatus:        r.Status,
		AffectedEventIDs: affectedEventIDs,
	}

	b.broadcast(NewMessage(TypeReleaseStatusChanged, payload))
}

// BroadcastReassignmentConfirmed sends a release.reassignment_confirmed message.
func (b *EventBroadcaster) BroadcastReassignmentConfirmed(releaseID string, moved, removed []string) {
	payload := ReassignmentPayload{
		ReleaseID: releaseID,
		Moved:     moved,
		Removed:   removed,
	}

	b.broadcast(NewMessage(TypeReassignmentConfirmed, payload))
}

// BroadcastImportFinished sends a calendar.import_finished message.
func (b *EventBroadcaster) BroadcastImportFinished(ownerID string, imported, skipped int) {
	payload := ImportPayload{
		OwnerID:  ownerID,
		Imported: imported,
		Skipped:  skipped,
	}

	b.broadcast(NewMessage(TypeCalendarImportFinished, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.WithError(err).Error("Error encoding WebSocket message")
		return
	}

	b.hub.Broadcast(data)
}
