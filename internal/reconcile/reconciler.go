package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"autodialer/internal/calls"
	"autodialer/pkg/logger"
	"autodialer/pkg/metrics"
)

// StatusEvent is one provider notification. Delivery is at-least-once:
// duplicates and unknown identifiers are expected.
type StatusEvent struct {
	ProviderCallID  string `json:"provider_call_id"`
	StatusCode      string `json:"status_code"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	RecordingURL    string `json:"recording_url,omitempty"`
}

type Result string

const (
	ResultApplied       Result = "applied"
	ResultUnknownCall   Result = "unknown_call"
	ResultIgnoredStatus Result = "ignored_status"
	ResultAlreadyFinal  Result = "already_final"
)

// MapProviderStatus maps the provider's terminal vocabulary to a call status.
// Progress codes (queued, ringing, in-progress, canceled, ...) are not mapped.
func MapProviderStatus(code string) (calls.CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "completed":
		return calls.CallStatusCompleted, true
	case "failed":
		return calls.CallStatusFailed, true
	case "no-answer":
		return calls.CallStatusNoAnswer, true
	case "busy":
		return calls.CallStatusBusy, true
	default:
		return "", false
	}
}

// Reconciler applies provider status events to call records.
//
// It is independent of the dispatch flow: events may arrive on any goroutine,
// concurrently with a batch, or after a restart.
type Reconciler struct {
	repo  calls.Repository
	log   *slog.Logger
	clock func() time.Time
	locks *keyedMutex
}

func NewReconciler(repo calls.Repository, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{repo: repo, log: log, clock: time.Now, locks: newKeyedMutex()}
}

// ApplyStatusEvent transitions the matching call to its terminal status.
//
// Unknown identifiers, unmapped codes and events for finalized calls are no-ops.
// Only store faults are returned as errors.
func (r *Reconciler) ApplyStatusEvent(ctx context.Context, ev StatusEvent) (Result, error) {
	res, err := r.apply(ctx, ev)
	if err == nil {
		metrics.StatusEventsTotal.WithLabelValues(string(res)).Inc()
	}
	return res, err
}

func (r *Reconciler) apply(ctx context.Context, ev StatusEvent) (Result, error) {
	sid := strings.TrimSpace(ev.ProviderCallID)
	log := logger.FromOr(ctx, r.log).With("call_sid", sid, "status", ev.StatusCode)
	if sid == "" {
		log.Info("status event without call id dropped")
		return ResultUnknownCall, nil
	}

	unlock := r.locks.Lock(sid)
	defer unlock()

	call, err := r.repo.FindByProviderCallID(ctx, sid)
	if errors.Is(err, calls.ErrNotFound) {
		log.Info("status event for unknown call dropped")
		return ResultUnknownCall, nil
	}
	if err != nil {
		return "", err
	}

	if call.Status.IsTerminal() {
		log.Debug("status event for finalized call ignored", "current", call.Status)
		return ResultAlreadyFinal, nil
	}

	target, ok := MapProviderStatus(ev.StatusCode)
	if !ok {
		log.Debug("non-terminal status event ignored")
		return ResultIgnoredStatus, nil
	}

	now := r.clock().UTC()
	_, err = r.repo.UpdateStatus(ctx, call.ID, call.Status, calls.StatusUpdate{
		Status:          target,
		CompletedAt:     &now,
		DurationSeconds: ev.DurationSeconds,
		RecordingURL:    ev.RecordingURL,
	})
	switch {
	case err == nil:
		log.Info("call finalized", "call_id", call.ID, "from", call.Status, "to", target)
		return ResultApplied, nil
	case errors.Is(err, calls.ErrStaleStatus):
		// A stop action finalized the call between our read and write.
		log.Info("status event lost race with stop", "call_id", call.ID)
		return ResultAlreadyFinal, nil
	case errors.Is(err, calls.ErrIllegalTransition):
		log.Warn("status event rejected by lifecycle", "call_id", call.ID, "current", call.Status, "target", target)
		return ResultIgnoredStatus, nil
	default:
		return "", err
	}
}
