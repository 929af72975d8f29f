package logging

import "testing"

func TestRedactKeepsShortPreview(t *testing.T) {
	if got := Redact("Jonathan Smith"); got != "Jona...th" {
		t.Fatalf("Redact = %q", got)
	}
}

func TestRedactHidesShortStringsEntirely(t *testing.T) {
	for _, s := range []string{"", "Ann", "12345678"} {
		if got := Redact(s); got != "***" {
			t.Fatalf("Redact(%q) = %q", s, got)
		}
	}
}
