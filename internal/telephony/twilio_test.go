package telephony

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *TwilioGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTwilioGateway(TwilioOptions{
		AccountSID:        "AC1",
		AuthToken:         "secret",
		FromNumber:        "+15550001111",
		StatusCallbackURL: "https://dialer.example.com/api/call_status",
		Record:            true,
		BaseURL:           srv.URL,
	})
}

func TestTwilioGateway_PlaceCall(t *testing.T) {
	var got url.Values
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2010-04-01/Accounts/AC1/Calls.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC1" || pass != "secret" {
			t.Errorf("expected basic auth")
		}
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	})

	res, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567", VoiceScript: "Hello"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ProviderCallID != "CA123" || res.ProviderStatus != "queued" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got.Get("From") != "+15550001111" || got.Get("To") != "+15551234567" {
		t.Fatalf("unexpected from/to: %v", got)
	}
	if !strings.Contains(got.Get("Twiml"), "<Say") || got.Get("Record") != "true" {
		t.Fatalf("expected twiml and record: %v", got)
	}
	if got.Get("StatusCallback") == "" || got.Get("StatusCallbackMethod") != http.MethodPost {
		t.Fatalf("expected status callback: %v", got)
	}
}

func TestTwilioGateway_PlaceCallRejected(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	})

	_, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1", VoiceScript: "Hello"})
	var pe *PlacementError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlacementError, got %v", err)
	}
	if pe.HTTPStatus != 400 || pe.Code != 21211 {
		t.Fatalf("unexpected error: %+v", pe)
	}
	if pe.Reason() != "The 'To' number is not a valid phone number." {
		t.Fatalf("unexpected reason %q", pe.Reason())
	}
}

func TestTwilioGateway_NotConfigured(t *testing.T) {
	g := NewTwilioGateway(TwilioOptions{})
	_, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567", VoiceScript: "Hello"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTwilioGateway_FetchCall(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Calls/CA123.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"sid":"CA123","status":"completed","duration":"17","direction":"outbound-api"}`))
	})

	d, err := g.FetchCall(context.Background(), "CA123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.Status != "completed" || d.DurationSeconds == nil || *d.DurationSeconds != 17 {
		t.Fatalf("unexpected details: %+v", d)
	}
}

func TestTwilioGateway_FetchCallNotFound(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":20404,"message":"The requested resource was not found","status":404}`))
	})

	_, err := g.FetchCall(context.Background(), "CA404")
	var pe *PlacementError
	if !errors.As(err, &pe) || pe.HTTPStatus != 404 || pe.Code != 20404 {
		t.Fatalf("expected mapped rest error, got %v", err)
	}
}

func TestTwilioGateway_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	g := NewTwilioGateway(TwilioOptions{AccountSID: "AC1", AuthToken: "secret", FromNumber: "+15550001111", BaseURL: base})

	_, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567", VoiceScript: "Hello"})
	var pe *PlacementError
	if !errors.As(err, &pe) || pe.HTTPStatus != 0 || pe.Err == nil {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestTwilioGateway_CanceledContext(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.PlaceCall(ctx, PlaceCallRequest{To: "+15551234567", VoiceScript: "Hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
