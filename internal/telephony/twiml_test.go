package telephony

import (
	"strings"
	"testing"
)

func TestRenderSay(t *testing.T) {
	xml, err := RenderSay("Hello from Autodialer", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := `<Response><Say voice="alice">Hello from Autodialer</Say></Response>`; !strings.Contains(xml, want) {
		t.Fatalf("expected %q in xml: %s", want, xml)
	}
}

func TestRenderSayEscapesScript(t *testing.T) {
	xml, err := RenderSay(`Tom & Jerry <3`, "man")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, `voice="man"`) || !strings.Contains(xml, "Tom &amp; Jerry &lt;3") {
		t.Fatalf("expected escaped script: %s", xml)
	}
}

func TestRenderSayRequiresScript(t *testing.T) {
	if _, err := RenderSay("  ", ""); err == nil {
		t.Fatalf("expected error")
	}
}
