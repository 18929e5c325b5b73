package reporting

import (
	"context"
	"errors"
	"fmt"

	"autodialer/internal/calls"
	"autodialer/internal/numbers"
)

type NumberCounter interface {
	Counts(ctx context.Context) (numbers.Counts, error)
}

type CallCounter interface {
	CountByStatus(ctx context.Context) (calls.StatusCounts, error)
}

// Service aggregates read-only statistics. It never mutates either store.
type Service struct {
	numbers NumberCounter
	calls   CallCounter
}

func NewService(n NumberCounter, c CallCounter) *Service {
	return &Service{numbers: n, calls: c}
}

func (s *Service) Stats(ctx context.Context) (Summary, error) {
	if s.numbers == nil || s.calls == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	nc, err := s.numbers.Counts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reporting: number counts: %w", err)
	}
	cc, err := s.calls.CountByStatus(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reporting: call counts: %w", err)
	}

	out := Summary{Numbers: nc, Calls: cc}
	out.Finished = cc.Completed + cc.Failed + cc.NoAnswer + cc.Busy
	if out.Finished > 0 {
		out.CompletionRate = float64(cc.Completed) / float64(out.Finished)
	}
	return out, nil
}
