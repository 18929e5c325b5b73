package command

import (
	"context"
	"errors"
	"fmt"

	"autodialer/internal/audit"
	"autodialer/internal/dispatch"
	"autodialer/internal/numbers"
	"autodialer/internal/reporting"
)

type Dispatcher interface {
	DispatchOne(ctx context.Context, n numbers.PhoneNumber, script string) (dispatch.Outcome, error)
	DispatchBatch(ctx context.Context, targets []numbers.PhoneNumber, script string) (dispatch.BatchOutcome, error)
	StopAll(ctx context.Context) (int, error)
}

type StatsReporter interface {
	Stats(ctx context.Context) (reporting.Summary, error)
}

type ActiveLister interface {
	ListActive(ctx context.Context) ([]numbers.PhoneNumber, error)
}

// Result is what the operator sees for one command.
type Result struct {
	Intent  Intent                 `json:"intent"`
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Call    *dispatch.Outcome      `json:"call,omitempty"`
	Batch   *dispatch.BatchOutcome `json:"batch,omitempty"`
	Stopped *int                   `json:"stopped,omitempty"`
	Stats   *reporting.Summary     `json:"stats,omitempty"`
}

// Executor interprets a command and runs it.
type Executor struct {
	interpreter *Interpreter
	dispatcher  Dispatcher
	stats       StatsReporter
	active      ActiveLister
	audit       *audit.Service
}

func NewExecutor(in *Interpreter, d Dispatcher, s StatsReporter, a ActiveLister, au *audit.Service) *Executor {
	return &Executor{interpreter: in, dispatcher: d, stats: s, active: a, audit: au}
}

// Execute returns an error only for infrastructure failures. Unrecognized
// commands and provider rejections are reported in Result.
func (e *Executor) Execute(ctx context.Context, prompt, script, ip string) (Result, error) {
	intent, err := e.interpreter.Interpret(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	res := Result{Intent: intent}

	switch intent.Kind {
	case IntentCallSingle:
		out, err := e.dispatcher.DispatchOne(ctx, *intent.Number, script)
		if err != nil {
			return Result{}, err
		}
		res.Call = &out
		res.Success = out.Success
		if out.Success {
			res.Message = "Calling " + intent.Number.Number
		} else {
			res.Message = "Call failed: " + out.Error
		}

	case IntentCallAll:
		targets, err := e.active.ListActive(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("command: list active: %w", err)
		}
		out, err := e.dispatcher.DispatchBatch(ctx, targets, script)
		switch {
		case errors.Is(err, dispatch.ErrNoTargets):
			res.Message = "No active numbers to call"
		case err != nil:
			return Result{}, err
		default:
			res.Batch = &out
			res.Success = out.SuccessCount > 0
			res.Message = fmt.Sprintf("Dialed %d of %d numbers", out.SuccessCount, out.Attempted)
		}

	case IntentStopAll:
		n, err := e.dispatcher.StopAll(ctx)
		if err != nil {
			return Result{}, err
		}
		res.Stopped = &n
		res.Success = true
		res.Message = fmt.Sprintf("Stopped %d calls", n)

	case IntentReportStats:
		s, err := e.stats.Stats(ctx)
		if err != nil {
			return Result{}, err
		}
		res.Stats = &s
		res.Success = true
		res.Message = "Stats"

	default:
		res.Message = intent.Reason
	}

	e.audit.Record(ctx, audit.Event{Type: audit.EventTypeCommand, IPAddress: ip, Message: prompt}, map[string]any{
		"intent":  intent.Kind,
		"success": res.Success,
		"result":  res.Message,
	})
	return res, nil
}
