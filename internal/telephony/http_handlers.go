package telephony

import (
	"context"
	"net/http"

	"autodialer/internal/reconcile"
	"autodialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusApplier is the reconciler surface the webhook needs.
type StatusApplier interface {
	ApplyStatusEvent(ctx context.Context, ev reconcile.StatusEvent) (reconcile.Result, error)
}

// StatusCallbackHandler converts the Twilio status callback to a reconcile.StatusEvent.
//
// No business logic here. Unknown and duplicate events are acknowledged with 200
// so the provider stops redelivering them.
type StatusCallbackHandler struct {
	Reconciler StatusApplier

	// AuthToken enables X-Twilio-Signature validation when ValidateSignature is set.
	AuthToken         string
	ValidateSignature bool
	// CallbackURL is the public URL Twilio signed; it is used instead of the
	// request URL because proxies rewrite host and scheme.
	CallbackURL string
}

func (h StatusCallbackHandler) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if h.ValidateSignature {
		signedURL := h.CallbackURL
		if signedURL == "" {
			signedURL = requestURL(c.Request)
		}
		if !ValidTwilioSignature(h.AuthToken, signedURL, c.Request.PostForm, c.GetHeader(headerTwilioSignature)) {
			log.Warn("twilio status callback signature mismatch", "call_sid", form.CallSid)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	res, err := h.Reconciler.ApplyStatusEvent(c.Request.Context(), form.ToStatusEvent())
	if err != nil {
		// Non-2xx makes the provider retry later.
		log.Error("status reconciliation failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	log.Debug("status callback handled", "call_sid", form.CallSid, "result", res, "payload", form.raw())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
