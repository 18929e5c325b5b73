package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event with metadata marshaled to JSON. Failures are logged
// and dropped.
func (s *Service) Record(ctx context.Context, e Event, metadata any) {
	if s == nil {
		return
	}
	if metadata != nil && e.Metadata == "" {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = string(b)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", e.Type, "err", err)
	}
}
