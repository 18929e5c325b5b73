package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.

const defaultVoice = "alice"

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// RenderSay builds a response that speaks script once and ends the call.
func RenderSay(script, voice string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", errors.New("telephony: voice script required")
	}
	if voice == "" {
		voice = defaultVoice
	}
	r := twimlResponse{Verbs: []any{twimlSay{Voice: voice, Text: script}}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
