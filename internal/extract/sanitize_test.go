package extract

import "testing"

func TestSanitizeRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := Sanitize(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestSanitizeTrimsWhitespace(t *testing.T) {
	if out := Sanitize("  \n hello \n "); out != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}
