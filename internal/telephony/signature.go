package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

const headerTwilioSignature = "X-Twilio-Signature"

// ValidTwilioSignature checks X-Twilio-Signature for a form-encoded callback.
// Twilio signs one value per key, so repeated keys keep their first value.
func ValidTwilioSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	validator := client.NewRequestValidator(authToken)
	return validator.Validate(fullURL, params, signature)
}
