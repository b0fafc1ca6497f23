package v1

import (
	"time"

	httperr "github.com/aevon-lab/segmentd/internal/core/errors"
)

// Event is a single user action as submitted by a client.
// Events are immutable once appended; the log never updates or deletes them.
type Event struct {
	// UserID identifies the user the event belongs to. Required.
	UserID string `json:"user_id"`

	// EventName is the action name, e.g. "BUTTON_CLICK". Required.
	EventName string `json:"event_name"`

	// EventTime is when the action happened on the client. Required.
	// Segment assignments report the max EventTime, never ProcessingTime.
	EventTime time.Time `json:"event_time"`

	// ProcessingTime is when segmentd received the event.
	// Set by the ingestion service, not the client.
	ProcessingTime time.Time `json:"processing_time"`

	// MessageID is the client-assigned idempotency key. Redelivered events
	// carry the same MessageID and count once.
	MessageID string `json:"message_id"`

	// IngestSeq is assigned by the store for scan pagination. Not part of the public API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures the event has all required attributes.
// index is the event's position in its batch (-1 for a single event).
func (e *Event) Validate(index int) error {
	if e.UserID == "" {
		return &httperr.ValidationError{Index: index, Field: "user_id", Reason: "is required"}
	}
	if e.EventName == "" {
		return &httperr.ValidationError{Index: index, Field: "event_name", Reason: "is required"}
	}
	if e.EventTime.IsZero() {
		return &httperr.ValidationError{Index: index, Field: "event_time", Reason: "is required"}
	}
	return nil
}

// ValidateBatch validates every event and returns the first failure.
func ValidateBatch(events []*Event) error {
	for i, evt := range events {
		if evt == nil {
			return &httperr.ValidationError{Index: i, Field: "event", Reason: "must not be null"}
		}
		if err := evt.Validate(i); err != nil {
			return err
		}
	}
	return nil
}
