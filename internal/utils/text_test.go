package utils

import "testing"

func TestShorten(t *testing.T) {
	if got := Shorten("short", 10); got != "short" {
		t.Fatalf("Shorten no-op failed: %q", got)
	}
	if got := Shorten("a very long question title", 10); got != "a very ..." {
		t.Fatalf("Shorten truncation failed: %q", got)
	}
	if got := Shorten("abcdef", 2); got != "abc" && got != "..." {
		// max below the ellipsis length clamps to 3
		t.Fatalf("Shorten clamp failed: %q", got)
	}
}
