package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"autodialer/internal/reconcile"

	"github.com/gin-gonic/gin"
)

type recordingApplier struct {
	events []reconcile.StatusEvent
	err    error
}

func (r *recordingApplier) ApplyStatusEvent(ctx context.Context, ev reconcile.StatusEvent) (reconcile.Result, error) {
	r.events = append(r.events, ev)
	if r.err != nil {
		return "", r.err
	}
	return reconcile.ResultUnknownCall, nil
}

func postStatus(t *testing.T, h StatusCallbackHandler, form url.Values, sig string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/call_status", h.HandleCallStatus)

	req := httptest.NewRequest(http.MethodPost, "/api/call_status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set("X-Twilio-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleCallStatus_AcknowledgesUnknownCalls(t *testing.T) {
	app := &recordingApplier{}
	w := postStatus(t, StatusCallbackHandler{Reconciler: app}, url.Values{"CallSid": {"CA9"}, "CallStatus": {"completed"}}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(app.events) != 1 || app.events[0].ProviderCallID != "CA9" {
		t.Fatalf("expected event forwarded, got %+v", app.events)
	}
}

func TestHandleCallStatus_StoreFaultIsRetryable(t *testing.T) {
	app := &recordingApplier{err: errors.New("db down")}
	w := postStatus(t, StatusCallbackHandler{Reconciler: app}, url.Values{"CallSid": {"CA9"}, "CallStatus": {"completed"}}, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleCallStatus_ValidatesSignature(t *testing.T) {
	const cb = "https://dialer.example.com/api/call_status"
	form := url.Values{"CallSid": {"CA9"}, "CallStatus": {"busy"}}
	h := StatusCallbackHandler{Reconciler: &recordingApplier{}, AuthToken: "tok", ValidateSignature: true, CallbackURL: cb}

	if w := postStatus(t, h, form, "bogus"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := postStatus(t, h, form, signForm("tok", cb, form)); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
