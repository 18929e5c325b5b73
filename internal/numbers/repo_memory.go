package numbers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory number store for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]PhoneNumber
	order []string
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]PhoneNumber{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, n PhoneNumber) (PhoneNumber, error) {
	if n.Status == "" {
		n.Status = StatusActive
	}
	if err := n.Validate(); err != nil {
		return PhoneNumber{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Number == n.Number {
			return PhoneNumber{}, ErrDuplicate
		}
	}
	now := r.clock().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt, n.UpdatedAt = now, now
	r.rows[n.ID] = n
	r.order = append(r.order, n.ID)
	return n, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return PhoneNumber{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) FindByNumber(ctx context.Context, number string) (PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.Number == number {
			return n, nil
		}
	}
	return PhoneNumber{}, ErrNotFound
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PhoneNumber, 0, len(r.order))
	for _, id := range r.order {
		if n := r.rows[id]; n.Status == StatusActive {
			out = append(out, n)
		}
	}
	return out, nil
}

// List returns the newest numbers first.
func (r *MemoryRepo) List(ctx context.Context, limit int) ([]PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PhoneNumber, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.rows[r.order[i]])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status) (PhoneNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return PhoneNumber{}, ErrNotFound
	}
	n.Status = status
	if err := n.Validate(); err != nil {
		return PhoneNumber{}, err
	}
	n.UpdatedAt = r.clock().UTC()
	r.rows[id] = n
	return n, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepo) Counts(ctx context.Context) (Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c Counts
	for _, n := range r.rows {
		c.Total++
		switch n.Status {
		case StatusActive:
			c.Active++
		case StatusInactive:
			c.Inactive++
		case StatusInvalid:
			c.Invalid++
		}
	}
	return c, nil
}
