package calls

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryRepo_UpdateStatusIsCompareAndSet(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	c := NewPending("n1", "+15551234567", "hi")
	_ = c.Accept("CA1", time.Now())
	c, err := repo.Create(ctx, c)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now()
	if _, err := repo.UpdateStatus(ctx, c.ID, CallStatusInProgress, StatusUpdate{Status: CallStatusCompleted, CompletedAt: &now}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, c.ID, CallStatusInProgress, StatusUpdate{Status: CallStatusFailed}); err != ErrStaleStatus {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, c.ID, CallStatusCompleted, StatusUpdate{Status: CallStatusInProgress}); err != ErrIllegalTransition {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	got, _ := repo.Get(ctx, c.ID)
	if got.Status != CallStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected final state: %+v", got)
	}
}

func TestMemoryRepo_ProviderCallIDUnique(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	c := NewPending("n1", "+15551234567", "hi")
	_ = c.Accept("CA1", time.Now())
	if _, err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, c); err != ErrDuplicateCallID {
		t.Fatalf("expected ErrDuplicateCallID, got %v", err)
	}
	if _, err := repo.FindByProviderCallID(ctx, ""); err != ErrNotFound {
		t.Fatalf("empty id must not match, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	d := 75
	created := time.Date(2024, 10, 19, 12, 0, 0, 0, time.UTC)
	rows := []Call{{ToNumber: "+15551234567", Status: CallStatusCompleted, DurationSeconds: &d, ProviderCallID: "CA1", CreatedAt: created}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %q", buf.String())
	}
	if lines[0] != "Phone Number,Status,Duration,Call SID,Time" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "+15551234567,completed,1:15,CA1,2024-10-19 12:00:00" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}
