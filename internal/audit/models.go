package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - IP capture is best-effort; audit failures never block dialing.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// IPAddress is the resolved client IP of the operator request.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Optional targets, depending on the event type.
	PhoneNumberID string `json:"phone_number_id,omitempty" db:"phone_number_id"`
	CallID        string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON with full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCommand       EventType = "command_issued"
	EventTypeCallPlaced    EventType = "call_dispatched"
	EventTypeBatch         EventType = "batch_dispatched"
	EventTypeStop          EventType = "calls_stopped"
	EventTypeImport        EventType = "numbers_imported"
	EventTypeNumberStatus  EventType = "number_status_changed"
	EventTypeNumberDeleted EventType = "number_deleted"
)
