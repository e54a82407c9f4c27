package util

import "testing"

func TestSanitizeTextStripsNUL(t *testing.T) {
	got := SanitizeText("abc\x00def")
	if got != "abcdef" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestSanitizeTextKeepsWhitespace(t *testing.T) {
	got := SanitizeText("a\nb\tc\x07d")
	if got != "a\nb\tcd" {
		t.Fatalf("unexpected result: %q", got)
	}
}
