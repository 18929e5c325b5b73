package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory call store for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Call
	bySID map[string]string
	order []string
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Call{}, bySID: map[string]string{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) (Call, error) {
	if !c.Status.Valid() {
		return Call{}, ErrIllegalTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ProviderCallID != "" {
		if _, exists := r.bySID[c.ProviderCallID]; exists {
			return Call{}, ErrDuplicateCallID
		}
	}
	now := r.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	r.rows[c.ID] = c
	if c.ProviderCallID != "" {
		r.bySID[c.ProviderCallID] = c.ID
	}
	r.order = append(r.order, c.ID)
	return c, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) FindByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySID[providerCallID]
	if !ok || providerCallID == "" {
		return Call{}, ErrNotFound
	}
	return r.rows[id], nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from CallStatus, u StatusUpdate) (Call, error) {
	if err := checkTransition(from, u); err != nil {
		return Call{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Status != from {
		return c, ErrStaleStatus
	}
	c.Status = u.Status
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		c.CompletedAt = &t
	}
	if u.DurationSeconds != nil {
		d := *u.DurationSeconds
		c.DurationSeconds = &d
	}
	if u.RecordingURL != "" {
		c.RecordingURL = u.RecordingURL
	}
	c.UpdatedAt = r.clock().UTC()
	r.rows[id] = c
	return c, nil
}

func (r *MemoryRepo) ListInProgress(ctx context.Context) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, id := range r.order {
		if c := r.rows[id]; c.Status == CallStatusInProgress {
			out = append(out, c)
		}
	}
	return out, nil
}

// List returns the newest calls first.
func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		c := r.rows[r.order[i]]
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context) (StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out StatusCounts
	for _, c := range r.rows {
		out.add(c.Status, 1)
	}
	return out, nil
}
