package slacksink

import "testing"

func TestParseTS(t *testing.T) {
	got, err := parseTS("1712345678.000100")
	if err != nil {
		t.Fatalf("parseTS: %v", err)
	}
	if got < 1712345678.0 || got > 1712345679.0 {
		t.Errorf("parseTS = %f", got)
	}

	if _, err := parseTS("not-a-timestamp"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestFormatTS(t *testing.T) {
	if got := formatTS(1712345678.0001); got != "1712345678.000100" {
		t.Errorf("formatTS = %q", got)
	}
	// Window underflow near epoch clamps to zero rather than going negative.
	if got := formatTS(-1.5); got != "0.000000" {
		t.Errorf("formatTS negative = %q", got)
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Error("expected error for empty bot token")
	}
}
