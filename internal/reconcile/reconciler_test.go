package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodialer/internal/calls"
)

func seedInProgress(t *testing.T, repo *calls.MemoryRepo, sid string) calls.Call {
	t.Helper()
	c := calls.NewPending("n1", "+15551234567", "hello")
	require.NoError(t, c.Accept(sid, time.Now()))
	c, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	return c
}

func intPtr(n int) *int { return &n }

func TestApplyStatusEvent_MapsTerminalStatuses(t *testing.T) {
	cases := map[string]calls.CallStatus{
		"completed": calls.CallStatusCompleted,
		"failed":    calls.CallStatusFailed,
		"no-answer": calls.CallStatusNoAnswer,
		"busy":      calls.CallStatusBusy,
	}
	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			repo := calls.NewMemoryRepo()
			r := NewReconciler(repo, nil)
			c := seedInProgress(t, repo, "CA-"+code)

			res, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: c.ProviderCallID, StatusCode: code})
			require.NoError(t, err)
			assert.Equal(t, ResultApplied, res)

			got, err := repo.Get(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, want, got.Status)
			assert.NotNil(t, got.CompletedAt)
			assert.Nil(t, got.DurationSeconds)
		})
	}
}

func TestApplyStatusEvent_SetsDurationWhenSupplied(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	c := seedInProgress(t, repo, "CA1")

	_, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "CA1", StatusCode: "completed", DurationSeconds: intPtr(42)})
	require.NoError(t, err)

	got, _ := repo.Get(context.Background(), c.ID)
	require.NotNil(t, got.DurationSeconds)
	assert.Equal(t, 42, *got.DurationSeconds)
}

func TestApplyStatusEvent_DuplicateIsIdempotent(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	c := seedInProgress(t, repo, "CA1")
	ctx := context.Background()

	ev := StatusEvent{ProviderCallID: "CA1", StatusCode: "completed", DurationSeconds: intPtr(30)}
	_, err := r.ApplyStatusEvent(ctx, ev)
	require.NoError(t, err)
	once, _ := repo.Get(ctx, c.ID)

	res, err := r.ApplyStatusEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyFinal, res)

	// A conflicting late event must not overwrite the finalized record either.
	res, err = r.ApplyStatusEvent(ctx, StatusEvent{ProviderCallID: "CA1", StatusCode: "busy", DurationSeconds: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyFinal, res)

	twice, _ := repo.Get(ctx, c.ID)
	assert.Equal(t, once.Status, twice.Status)
	assert.Equal(t, *once.DurationSeconds, *twice.DurationSeconds)
	assert.Equal(t, once.CompletedAt, twice.CompletedAt)
}

func TestApplyStatusEvent_UnknownCallIsNoop(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)

	res, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "CA-missing", StatusCode: "completed"})
	require.NoError(t, err)
	assert.Equal(t, ResultUnknownCall, res)

	counts, _ := repo.CountByStatus(context.Background())
	assert.Equal(t, 0, counts.Total)
}

func TestApplyStatusEvent_CallWithoutIdentifierNeverMatches(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	pending, err := repo.Create(context.Background(), calls.NewPending("n1", "+15551234567", "hi"))
	require.NoError(t, err)

	res, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "", StatusCode: "completed"})
	require.NoError(t, err)
	assert.Equal(t, ResultUnknownCall, res)

	got, _ := repo.Get(context.Background(), pending.ID)
	assert.Equal(t, calls.CallStatusPending, got.Status)
}

func TestApplyStatusEvent_IgnoresProgressCodes(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	c := seedInProgress(t, repo, "CA1")

	for _, code := range []string{"queued", "ringing", "in-progress", "canceled", ""} {
		res, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "CA1", StatusCode: code})
		require.NoError(t, err)
		assert.Equal(t, ResultIgnoredStatus, res, code)
	}
	got, _ := repo.Get(context.Background(), c.ID)
	assert.Equal(t, calls.CallStatusInProgress, got.Status)
}

func TestApplyStatusEvent_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	seedInProgress(t, repo, "CA1")

	var wg sync.WaitGroup
	results := make(chan Result, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "CA1", StatusCode: "completed"})
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for res := range results {
		if res == ResultApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, r.locks.size())
}

func TestApplyStatusEvent_StoresRecordingURL(t *testing.T) {
	repo := calls.NewMemoryRepo()
	r := NewReconciler(repo, nil)
	c := seedInProgress(t, repo, "CArec")

	_, err := r.ApplyStatusEvent(context.Background(), StatusEvent{
		ProviderCallID: "CArec",
		StatusCode:     "completed",
		RecordingURL:   "https://api.twilio.com/recordings/RE1",
	})
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://api.twilio.com/recordings/RE1", got.RecordingURL)
}
