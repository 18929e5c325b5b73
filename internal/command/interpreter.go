package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"autodialer/internal/numbers"
)

type IntentKind string

const (
	IntentCallSingle   IntentKind = "call_single"
	IntentCallAll      IntentKind = "call_all"
	IntentStopAll      IntentKind = "stop_all"
	IntentReportStats  IntentKind = "report_stats"
	IntentUnrecognized IntentKind = "unrecognized"
)

// Intent is the classified meaning of an operator command.
// Number is set only for IntentCallSingle, Reason only for IntentUnrecognized.
type Intent struct {
	Kind        IntentKind           `json:"kind"`
	Number      *numbers.PhoneNumber `json:"number,omitempty"`
	ActiveCount int                  `json:"active_count,omitempty"`
	Reason      string               `json:"reason,omitempty"`
}

const (
	ReasonNumberNotFound = "number not found"
	ReasonUnknown        = "unknown command"
)

// NumberLookup is the read-only view of the number store the interpreter needs.
type NumberLookup interface {
	FindByNumber(ctx context.Context, number string) (numbers.PhoneNumber, error)
	Counts(ctx context.Context) (numbers.Counts, error)
}

var (
	// Digit groups joined by short runs of spaces, dots, dashes or parentheses,
	// so "(555) 123-4567" and "+1 555 123 4567" read as one number.
	digitsPattern = regexp.MustCompile(`\+?\(?\d(?:[\s().-]{0,3}\d)+`)
	callAllWords  = []string{"call all", "start calling", "begin calls"}
	stopWords     = []string{"stop", "pause", "halt"}
	statsWords    = []string{"stats", "statistics", "show"}
)

// Interpreter classifies free text. It only reads the number store.
type Interpreter struct {
	numbers NumberLookup
}

func NewInterpreter(n NumberLookup) *Interpreter { return &Interpreter{numbers: n} }

// Interpret tests patterns in a fixed order: a number of 10+ digits (separators allowed), bulk-call
// phrases, stop phrases, stats phrases. An error is returned only when the
// number store fails.
func (i *Interpreter) Interpret(ctx context.Context, text string) (Intent, error) {
	t := strings.ToLower(strings.TrimSpace(text))

	if m := findNumber(t); m != "" {
		n, err := i.numbers.FindByNumber(ctx, numbers.Normalize(m))
		switch {
		case err == nil:
			return Intent{Kind: IntentCallSingle, Number: &n}, nil
		case errors.Is(err, numbers.ErrNotFound):
			return Intent{Kind: IntentUnrecognized, Reason: ReasonNumberNotFound}, nil
		default:
			return Intent{}, fmt.Errorf("command: find number: %w", err)
		}
	}

	if containsAny(t, callAllWords) {
		c, err := i.numbers.Counts(ctx)
		if err != nil {
			return Intent{}, fmt.Errorf("command: count numbers: %w", err)
		}
		return Intent{Kind: IntentCallAll, ActiveCount: c.Active}, nil
	}
	if containsAny(t, stopWords) {
		return Intent{Kind: IntentStopAll}, nil
	}
	if containsAny(t, statsWords) {
		return Intent{Kind: IntentReportStats}, nil
	}
	return Intent{Kind: IntentUnrecognized, Reason: ReasonUnknown}, nil
}

// findNumber returns the first digit run holding at least ten digits.
func findNumber(t string) string {
	for _, m := range digitsPattern.FindAllString(t, -1) {
		if countDigits(m) >= 10 {
			return m
		}
	}
	return ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
