package numbers

import "time"

// PhoneNumber is a dial target.
//
// Invariants:
// - Number is unique across the set.
// - Only a canonical number (see IsCanonical) may be stored as active.
// - The core never deletes numbers; deletion is an operator action.
type PhoneNumber struct {
	ID     string `json:"id" db:"id"`
	Number string `json:"number" db:"number"`
	Status Status `json:"status" db:"status"`
	Notes  string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusInvalid  Status = "invalid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusInvalid:
		return true
	default:
		return false
	}
}

// Counts is the number-set breakdown used by stats.
type Counts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Invalid  int `json:"invalid"`
}

// Validate checks the stored-record invariants for n.
func (n PhoneNumber) Validate() error {
	if n.Number == "" {
		return ErrInvalidFormat
	}
	if !n.Status.Valid() {
		return ErrInvalidStatus
	}
	if n.Status == StatusActive && !IsCanonical(n.Number) {
		return ErrInvalidFormat
	}
	return nil
}
