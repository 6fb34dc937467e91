package common

import "testing"

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("  héllo wörld ", 5); got != "héllo" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateRunes(" keep ", 0); got != "keep" {
		t.Fatalf("non-positive limit should only trim, got %q", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for input, want := range cases {
		if got := StripCodeFence(input); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", input, got, want)
		}
	}
}
