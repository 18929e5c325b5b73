package telephony

import (
	"context"
	"errors"
	"fmt"
)

// Gateway places outbound calls with the provider.
//
// Rules:
// - One PlaceCall is one outbound request; no retries happen here.
// - Any returned error is a placement failure for that number (usually *PlacementError).
// - On success the provider drives the call and reports status out-of-band.
type Gateway interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

// CallFetcher reads the provider's current view of a call.
type CallFetcher interface {
	FetchCall(ctx context.Context, providerCallID string) (CallDetails, error)
}

type PlaceCallRequest struct {
	// From is optional; the gateway's configured caller id is used when empty.
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
	VoiceScript string `json:"voice_script"`
}

type PlaceCallResult struct {
	ProviderCallID string `json:"call_sid"`
	ProviderStatus string `json:"status"`
}

type CallDetails struct {
	ProviderCallID  string `json:"call_sid"`
	Status          string `json:"status"`
	DurationSeconds *int   `json:"duration,omitempty"`
	Direction       string `json:"direction,omitempty"`
}

var ErrNotConfigured = errors.New("telephony: provider credentials not configured")

// PlacementError is a provider-side rejection or a failed exchange with the provider.
type PlacementError struct {
	// HTTPStatus is 0 when the request never got a response.
	HTTPStatus int
	// Code is the provider error code, when supplied.
	Code    int
	Message string
	Err     error
}

func (e *PlacementError) Error() string {
	switch {
	case e.Message != "" && e.Code != 0:
		return fmt.Sprintf("telephony: provider rejected call (%d): %s", e.Code, e.Message)
	case e.Message != "":
		return "telephony: provider rejected call: " + e.Message
	case e.Err != nil:
		return "telephony: provider request failed: " + e.Err.Error()
	default:
		return fmt.Sprintf("telephony: provider returned status %d", e.HTTPStatus)
	}
}

func (e *PlacementError) Unwrap() error { return e.Err }

// Reason is the provider's message, suitable for per-number batch results.
func (e *PlacementError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}
