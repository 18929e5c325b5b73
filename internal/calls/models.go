package calls

import (
	"fmt"
	"time"
)

// Call is one placement attempt accepted by the provider.
//
// Invariants:
// - ProviderCallID, when set, is unique.
// - A call without ProviderCallID never leaves pending through a status event.
// - Terminal statuses are final.
type Call struct {
	ID            string `json:"id" db:"id"`
	PhoneNumberID string `json:"phone_number_id" db:"phone_number_id"`
	// ToNumber is the dialed number at placement time.
	ToNumber string `json:"to_number" db:"to_number"`

	ProviderCallID string     `json:"call_sid,omitempty" db:"provider_call_id"`
	Status         CallStatus `json:"status" db:"status"`

	// DurationSeconds is nil until the provider reports it.
	DurationSeconds *int `json:"duration,omitempty" db:"duration"`

	VoiceScript  string `json:"voice_script,omitempty" db:"voice_script"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
)

// transitions is the complete lifecycle table. Anything not listed is illegal.
var transitions = map[CallStatus][]CallStatus{
	CallStatusPending:    {CallStatusInProgress, CallStatusFailed},
	CallStatusInProgress: {CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy},
}

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusInProgress, CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy:
		return true
	default:
		return false
	}
}

func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to CallStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewPending builds a call record for a placement about to be attempted.
func NewPending(phoneNumberID, toNumber, voiceScript string) Call {
	return Call{
		PhoneNumberID: phoneNumberID,
		ToNumber:      toNumber,
		Status:        CallStatusPending,
		VoiceScript:   voiceScript,
	}
}

// Accept moves a pending call to in_progress once the provider has returned an identifier.
func (c *Call) Accept(providerCallID string, startedAt time.Time) error {
	if providerCallID == "" {
		return fmt.Errorf("calls: accept requires a provider call id")
	}
	if !CanTransition(c.Status, CallStatusInProgress) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.Status, CallStatusInProgress)
	}
	c.ProviderCallID = providerCallID
	c.Status = CallStatusInProgress
	c.StartedAt = &startedAt
	return nil
}

// StatusUpdate is the set of fields written on a status transition.
// Nil pointers and an empty RecordingURL leave the stored value unchanged.
type StatusUpdate struct {
	Status          CallStatus
	CompletedAt     *time.Time
	DurationSeconds *int
	RecordingURL    string
}

// StatusCounts is the call breakdown used by stats.
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	NoAnswer   int `json:"no_answer"`
	Busy       int `json:"busy"`
}

func (c *StatusCounts) add(s CallStatus, n int) {
	c.Total += n
	switch s {
	case CallStatusPending:
		c.Pending += n
	case CallStatusInProgress:
		c.InProgress += n
	case CallStatusCompleted:
		c.Completed += n
	case CallStatusFailed:
		c.Failed += n
	case CallStatusNoAnswer:
		c.NoAnswer += n
	case CallStatusBusy:
		c.Busy += n
	}
}

// FormatDuration renders a duration as m:ss; "0:00" when absent or zero.
func FormatDuration(seconds *int) string {
	if seconds == nil || *seconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", *seconds/60, *seconds%60)
}
