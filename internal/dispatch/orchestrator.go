package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autodialer/internal/calls"
	"autodialer/internal/numbers"
	"autodialer/internal/telephony"
	"autodialer/pkg/logger"
	"autodialer/pkg/metrics"
)

var (
	ErrNoTargets     = errors.New("dispatch: no targets available")
	ErrInvalidNumber = errors.New("dispatch: number is not in canonical format")
	ErrNotDialable   = errors.New("dispatch: only active numbers can be dialed")
)

const DefaultVoiceScript = "Hello from Autodialer"

// Outcome is the result of one placement attempt.
// Err is set for validation failures and provider rejections only.
type Outcome struct {
	Success        bool   `json:"success"`
	CallID         string `json:"call_id,omitempty"`
	ProviderCallID string `json:"call_sid,omitempty"`
	Error          string `json:"error,omitempty"`
	Err            error  `json:"-"`
}

type Failure struct {
	Number string `json:"number"`
	Error  string `json:"error"`
}

type BatchOutcome struct {
	Attempted    int       `json:"attempted"`
	SuccessCount int       `json:"success_count"`
	Failures     []Failure `json:"failures"`
}

// Partial reports whether some numbers succeeded and some failed.
func (b BatchOutcome) Partial() bool {
	return b.SuccessCount > 0 && len(b.Failures) > 0
}

type Options struct {
	// FromNumber is the caller id passed to the gateway; empty uses the gateway default.
	FromNumber    string
	DefaultScript string
}

// Orchestrator places calls one at a time through the limiter.
//
// Rules:
// - A call record is written only after the gateway accepted the placement.
// - Provider rejections and invalid numbers are outcome values.
// - Store and limiter errors are returned and abort the operation.
type Orchestrator struct {
	calls   calls.Repository
	gateway telephony.Gateway
	limiter Limiter
	log     *slog.Logger
	opts    Options
	clock   func() time.Time
}

func NewOrchestrator(repo calls.Repository, gw telephony.Gateway, lim Limiter, log *slog.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if lim == nil {
		lim = NewRateLimiter(0, 1)
	}
	if opts.DefaultScript == "" {
		opts.DefaultScript = DefaultVoiceScript
	}
	return &Orchestrator{calls: repo, gateway: gw, limiter: lim, log: log, opts: opts, clock: time.Now}
}

func (o *Orchestrator) script(s string) string {
	if s == "" {
		return o.opts.DefaultScript
	}
	return s
}

// DispatchOne places a single call to n.
func (o *Orchestrator) DispatchOne(ctx context.Context, n numbers.PhoneNumber, script string) (Outcome, error) {
	script = o.script(script)
	log := logger.FromOr(ctx, o.log)

	if !numbers.IsCanonical(n.Number) {
		metrics.CallPlacementsTotal.WithLabelValues("invalid").Inc()
		return failed(fmt.Errorf("%w: %q", ErrInvalidNumber, n.Number)), nil
	}
	if n.Status != numbers.StatusActive {
		metrics.CallPlacementsTotal.WithLabelValues("invalid").Inc()
		out := failed(fmt.Errorf("%w: %s is %s", ErrNotDialable, n.Number, n.Status))
		out.Error = fmt.Sprintf("only active numbers can be dialed: %s is %s; set it to active first", n.Number, n.Status)
		return out, nil
	}

	waitStart := o.clock()
	if err := o.limiter.Wait(ctx); err != nil {
		return Outcome{}, fmt.Errorf("dispatch: pacing: %w", err)
	}
	metrics.PacingWaitSeconds.Observe(o.clock().Sub(waitStart).Seconds())

	res, err := o.gateway.PlaceCall(ctx, telephony.PlaceCallRequest{
		From:        o.opts.FromNumber,
		To:          n.Number,
		VoiceScript: script,
	})
	if err != nil {
		metrics.CallPlacementsTotal.WithLabelValues("rejected").Inc()
		log.Warn("call placement rejected", "to", n.Number, "err", err)
		return failed(err), nil
	}

	c := calls.NewPending(n.ID, n.Number, script)
	if err := c.Accept(res.ProviderCallID, o.clock().UTC()); err != nil {
		metrics.CallPlacementsTotal.WithLabelValues("rejected").Inc()
		log.Warn("provider accepted call without usable id", "to", n.Number, "provider_status", res.ProviderStatus)
		return failed(err), nil
	}
	created, err := o.calls.Create(ctx, c)
	if err != nil {
		// The provider is already driving this call; the record is lost.
		log.Error("persist placed call", "to", n.Number, "call_sid", res.ProviderCallID, "err", err)
		return Outcome{}, fmt.Errorf("dispatch: persist call: %w", err)
	}

	metrics.CallPlacementsTotal.WithLabelValues("accepted").Inc()
	log.Info("call placed", "to", n.Number, "call_sid", created.ProviderCallID, "provider_status", res.ProviderStatus)
	return Outcome{Success: true, CallID: created.ID, ProviderCallID: created.ProviderCallID}, nil
}

// DispatchBatch dials every number in the order given. It never stops on an
// individual failure.
func (o *Orchestrator) DispatchBatch(ctx context.Context, targets []numbers.PhoneNumber, script string) (BatchOutcome, error) {
	if len(targets) == 0 {
		return BatchOutcome{}, ErrNoTargets
	}
	started := o.clock()
	defer func() { metrics.BatchDurationSeconds.Observe(o.clock().Sub(started).Seconds()) }()

	out := BatchOutcome{Failures: []Failure{}}
	for _, n := range targets {
		res, err := o.DispatchOne(ctx, n, script)
		if err != nil {
			return out, err
		}
		out.Attempted++
		if res.Success {
			out.SuccessCount++
			continue
		}
		out.Failures = append(out.Failures, Failure{Number: n.Number, Error: res.Error})
	}

	logger.FromOr(ctx, o.log).Info("batch dispatched", "attempted", out.Attempted, "succeeded", out.SuccessCount, "failed", len(out.Failures))
	return out, nil
}

// StopAll force-fails every in_progress call in the store and returns how many
// were transitioned. The provider is not asked to hang up, and pending calls
// are left alone.
func (o *Orchestrator) StopAll(ctx context.Context) (int, error) {
	active, err := o.calls.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("dispatch: list in progress: %w", err)
	}
	stopped := 0
	for _, c := range active {
		now := o.clock().UTC()
		_, err := o.calls.UpdateStatus(ctx, c.ID, calls.CallStatusInProgress, calls.StatusUpdate{
			Status:      calls.CallStatusFailed,
			CompletedAt: &now,
		})
		switch {
		case err == nil:
			stopped++
		case errors.Is(err, calls.ErrStaleStatus), errors.Is(err, calls.ErrIllegalTransition):
			// finalized by a status event in the meantime
		default:
			return stopped, fmt.Errorf("dispatch: stop call %s: %w", c.ID, err)
		}
	}
	metrics.CallsStoppedTotal.Add(float64(stopped))
	logger.FromOr(ctx, o.log).Info("stopped in-progress calls", "count", stopped)
	return stopped, nil
}

func failed(err error) Outcome {
	reason := err.Error()
	var pe *telephony.PlacementError
	if errors.As(err, &pe) {
		reason = pe.Reason()
	}
	return Outcome{Error: reason, Err: err}
}
