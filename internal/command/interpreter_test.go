package command

import (
	"context"
	"errors"
	"testing"

	"autodialer/internal/numbers"
)

type brokenLookup struct{}

func (brokenLookup) FindByNumber(ctx context.Context, number string) (numbers.PhoneNumber, error) {
	return numbers.PhoneNumber{}, errors.New("db down")
}

func (brokenLookup) Counts(ctx context.Context) (numbers.Counts, error) {
	return numbers.Counts{}, errors.New("db down")
}

func seededNumbers(t *testing.T, values ...string) *numbers.MemoryRepo {
	t.Helper()
	repo := numbers.NewMemoryRepo()
	for _, v := range values {
		if _, err := repo.Create(context.Background(), numbers.PhoneNumber{Number: v, Status: numbers.StatusActive}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return repo
}

func TestInterpret_Classification(t *testing.T) {
	in := NewInterpreter(seededNumbers(t, "+15551234567", "+15557654321"))

	cases := []struct {
		text   string
		kind   IntentKind
		reason string
	}{
		{"call 5551234567", IntentCallSingle, ""},
		{"  CALL +15551234567  ", IntentCallSingle, ""},
		{"call 5559990000", IntentUnrecognized, ReasonNumberNotFound},
		{"call (555) 123-4567", IntentCallSingle, ""},
		{"call +1 555 123 4567", IntentCallSingle, ""},
		{"call 555.765.4321", IntentCallSingle, ""},
		{"call (555) 999-0000", IntentUnrecognized, ReasonNumberNotFound},
		{"call 555 1234", IntentUnrecognized, ReasonUnknown},
		{"Call all", IntentCallAll, ""},
		{"please start calling everyone", IntentCallAll, ""},
		{"begin calls", IntentCallAll, ""},
		{"please STOP now", IntentStopAll, ""},
		{"pause", IntentStopAll, ""},
		{"halt the campaign", IntentStopAll, ""},
		{"show me the stats", IntentReportStats, ""},
		{"statistics", IntentReportStats, ""},
		{"do a backflip", IntentUnrecognized, ReasonUnknown},
		{"", IntentUnrecognized, ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, err := in.Interpret(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, got.Kind)
			}
			if got.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, got.Reason)
			}
		})
	}
}

func TestInterpret_FormattedNumberResolvesToStoredNumber(t *testing.T) {
	in := NewInterpreter(seededNumbers(t, "+15551234567"))

	for _, text := range []string{"call (555) 123-4567 please", "dial +1 555 123 4567", "call 7 people at 555-123-4567"} {
		got, err := in.Interpret(context.Background(), text)
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", text, err)
		}
		if got.Kind != IntentCallSingle || got.Number == nil || got.Number.Number != "+15551234567" {
			t.Fatalf("%q: expected +15551234567, got %+v", text, got)
		}
	}
}

func TestInterpret_Precedence(t *testing.T) {
	in := NewInterpreter(seededNumbers(t, "+15551234567"))

	// a number beats every phrase
	got, err := in.Interpret(context.Background(), "stop and call all 5551234567")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Kind != IntentCallSingle || got.Number == nil || got.Number.Number != "+15551234567" {
		t.Fatalf("expected call_single for +15551234567, got %+v", got)
	}

	// bulk phrase beats stop and stats
	got, _ = in.Interpret(context.Background(), "call all then show stats and stop")
	if got.Kind != IntentCallAll {
		t.Fatalf("expected call_all, got %s", got.Kind)
	}
	if got.ActiveCount != 1 {
		t.Fatalf("expected active count 1, got %d", got.ActiveCount)
	}

	got, _ = in.Interpret(context.Background(), "stop and show stats")
	if got.Kind != IntentStopAll {
		t.Fatalf("expected stop_all, got %s", got.Kind)
	}
}

func TestInterpret_StoreErrorsPropagate(t *testing.T) {
	in := NewInterpreter(brokenLookup{})
	if _, err := in.Interpret(context.Background(), "call 5551234567"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := in.Interpret(context.Background(), "call all"); err == nil {
		t.Fatalf("expected error")
	}
	got, err := in.Interpret(context.Background(), "stop")
	if err != nil || got.Kind != IntentStopAll {
		t.Fatalf("stop needs no lookup: %+v %v", got, err)
	}
}
