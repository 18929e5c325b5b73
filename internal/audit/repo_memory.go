package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps operator events in process for local runs and tests.
// Reads return copies in append order.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	return r.filter(func(Event) bool { return true })
}

// ByType returns the events of the given types, oldest first.
func (r *MemoryRepo) ByType(types ...EventType) []Event {
	return r.filter(func(e Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	})
}

// ForNumber returns every action that targeted the phone number id:
// dispatches, status changes and deletion.
func (r *MemoryRepo) ForNumber(phoneNumberID string) []Event {
	return r.filter(func(e Event) bool { return e.PhoneNumberID == phoneNumberID })
}

// Last returns the most recent event of type t.
func (r *MemoryRepo) Last(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *MemoryRepo) filter(keep func(Event) bool) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
