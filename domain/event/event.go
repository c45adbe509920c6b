// Package event provides the toolchanger journal: lifecycle events and the
// interfaces used to store and publish them.
package event

import (
	"encoding/json"
	"time"
)

// Event represents one journal entry.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Stream is the name of the toolchanger the event belongs to.
	Stream string `json:"stream"`

	// Type classifies the event.
	Type Type `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload"`

	// Sequence is the ordering number within the stream.
	Sequence uint64 `json:"sequence"`

	// Version is the event schema version.
	Version int `json:"version,omitempty"`
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(stream string, eventType Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Stream:    stream,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
		Version:   1,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
