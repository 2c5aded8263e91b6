package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("SB_INT", "7")
	t.Setenv("SB_BAD_INT", "seven")
	t.Setenv("SB_BOOL", "off")
	t.Setenv("SB_FLOAT", "0.25")
	t.Setenv("SB_SECS", "15")
	t.Setenv("SB_MS", "250")
	t.Setenv("SB_STR", "  x ")

	if got := Int("SB_INT", 1); got != 7 {
		t.Fatalf("Int: got=%d", got)
	}
	if got := Int("SB_BAD_INT", 3); got != 3 {
		t.Fatalf("Int fallback: got=%d", got)
	}
	if Bool("SB_BOOL", true) {
		t.Fatalf("Bool: want=false")
	}
	if !Bool("SB_UNSET_BOOL", true) {
		t.Fatalf("Bool default: want=true")
	}
	if got := Float("SB_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float: got=%v", got)
	}
	if got := Seconds("SB_SECS", time.Minute); got != 15*time.Second {
		t.Fatalf("Seconds: got=%v", got)
	}
	if got := Seconds("SB_UNSET_SECS", time.Minute); got != time.Minute {
		t.Fatalf("Seconds default: got=%v", got)
	}
	if got := Millis("SB_MS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Millis: got=%v", got)
	}
	if got := String("SB_STR", "d"); got != "x" {
		t.Fatalf("String: got=%q", got)
	}
}
