package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOptions configures the REST gateway.
type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	// FromNumber is the caller id used when a request does not set one.
	FromNumber string
	// StatusCallbackURL receives terminal status events; empty disables callbacks.
	StatusCallbackURL string
	Voice             string
	Record            bool

	// BaseURL replaces the scheme and host of every SDK request (local stubs, tests).
	BaseURL    string
	HTTPClient *http.Client
}

// TwilioGateway places calls through the Twilio Calls REST resource.
// The voice script is sent inline as TwiML so no answer URL is needed.
type TwilioGateway struct {
	opts TwilioOptions
	rest *twilio.RestClient
}

func NewTwilioGateway(opts TwilioOptions) *TwilioGateway {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BaseURL != "" {
		if u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/")); err == nil && u.Host != "" {
			next := hc.Transport
			if next == nil {
				next = http.DefaultTransport
			}
			cp := *hc
			cp.Transport = hostRewrite{scheme: u.Scheme, host: u.Host, next: next}
			hc = &cp
		}
	}
	rc := &client.Client{
		Credentials: client.NewCredentials(opts.AccountSID, opts.AuthToken),
		HTTPClient:  hc,
	}
	rc.SetAccountSid(opts.AccountSID)
	return &TwilioGateway{
		opts: opts,
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{Client: rc}),
	}
}

func (g *TwilioGateway) configured() bool {
	return g.opts.AccountSID != "" && g.opts.AuthToken != ""
}

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if !g.configured() {
		return PlaceCallResult{}, &PlacementError{Err: ErrNotConfigured}
	}
	from := req.From
	if from == "" {
		from = g.opts.FromNumber
	}
	if from == "" || req.To == "" {
		return PlaceCallResult{}, &PlacementError{Message: "from and to numbers are required"}
	}
	twiml, err := RenderSay(req.VoiceScript, g.opts.Voice)
	if err != nil {
		return PlaceCallResult{}, &PlacementError{Message: err.Error(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return PlaceCallResult{}, &PlacementError{Err: err}
	}

	params := &api.CreateCallParams{}
	params.SetPathAccountSid(g.opts.AccountSID)
	params.SetFrom(from)
	params.SetTo(req.To)
	params.SetTwiml(twiml)
	if g.opts.Record {
		params.SetRecord(true)
	}
	if g.opts.StatusCallbackURL != "" {
		params.SetStatusCallback(g.opts.StatusCallbackURL)
		params.SetStatusCallbackMethod(http.MethodPost)
	}

	res, err := g.rest.Api.CreateCall(params)
	if err != nil {
		return PlaceCallResult{}, placementError(err)
	}
	sid := deref(res.Sid)
	if sid == "" {
		return PlaceCallResult{}, &PlacementError{HTTPStatus: http.StatusOK, Message: "provider response missing call sid"}
	}
	return PlaceCallResult{ProviderCallID: sid, ProviderStatus: deref(res.Status)}, nil
}

func (g *TwilioGateway) FetchCall(ctx context.Context, providerCallID string) (CallDetails, error) {
	if !g.configured() {
		return CallDetails{}, ErrNotConfigured
	}
	if providerCallID == "" {
		return CallDetails{}, errors.New("telephony: call sid required")
	}
	if err := ctx.Err(); err != nil {
		return CallDetails{}, err
	}

	params := &api.FetchCallParams{}
	params.SetPathAccountSid(g.opts.AccountSID)
	res, err := g.rest.Api.FetchCall(providerCallID, params)
	if err != nil {
		return CallDetails{}, placementError(err)
	}
	out := CallDetails{
		ProviderCallID: deref(res.Sid),
		Status:         deref(res.Status),
		Direction:      deref(res.Direction),
	}
	if d := deref(res.Duration); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			out.DurationSeconds = &n
		}
	}
	return out, nil
}

// placementError maps SDK failures onto the gateway's typed error.
func placementError(err error) *PlacementError {
	var re *client.TwilioRestError
	if errors.As(err, &re) {
		return &PlacementError{HTTPStatus: re.Status, Code: re.Code, Message: re.Message, Err: err}
	}
	return &PlacementError{Err: err}
}

func deref[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

type hostRewrite struct {
	scheme string
	host   string
	next   http.RoundTripper
}

func (h hostRewrite) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if h.scheme != "" {
		r.URL.Scheme = h.scheme
	}
	r.URL.Host = h.host
	r.Host = h.host
	return h.next.RoundTrip(r)
}
