package telephony

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"autodialer/internal/reconcile"
)

// TwilioStatusForm captures the subset of status callback fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid      string
	AccountSid   string
	CallStatus   string
	CallDuration string
	From         string
	To           string
	Direction    string
	RecordingURL string
	Timestamp    string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	return TwilioStatusForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   r.PostFormValue("AccountSid"),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallDuration: strings.TrimSpace(r.PostFormValue("CallDuration")),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		RecordingURL: r.PostFormValue("RecordingUrl"),
		Timestamp:    r.PostFormValue("Timestamp"),
	}, nil
}

// ToStatusEvent converts the form to the reconciler's event. A missing or
// malformed CallDuration leaves the duration unset.
func (f TwilioStatusForm) ToStatusEvent() reconcile.StatusEvent {
	ev := reconcile.StatusEvent{ProviderCallID: f.CallSid, StatusCode: f.CallStatus, RecordingURL: f.RecordingURL}
	if f.CallDuration != "" {
		if n, err := strconv.Atoi(f.CallDuration); err == nil && n >= 0 {
			ev.DurationSeconds = &n
		}
	}
	return ev
}

func (f TwilioStatusForm) raw() string {
	b, _ := json.Marshal(f)
	return string(b)
}
