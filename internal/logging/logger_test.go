package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		log.SetFlags(flags)
		SetDebug(false)
	})
	return &buf
}

func TestInfoAndWarnPrefix(t *testing.T) {
	buf := capture(t)
	Info("sampler", "app=%s", "code")
	Warn("osenv", "xrandr failed")

	out := buf.String()
	if !strings.Contains(out, "[sampler] app=code\n") {
		t.Errorf("info line missing: %q", out)
	}
	if !strings.Contains(out, "[osenv] WARN xrandr failed\n") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestDebugGate(t *testing.T) {
	buf := capture(t)
	SetDebug(false)
	Debug("classifier", "hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged while disabled: %q", buf.String())
	}
	SetDebug(true)
	Debug("classifier", "shown %d", 1)
	if !strings.Contains(buf.String(), "[classifier] shown 1") {
		t.Errorf("got %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"  line one\nline two  ", 40, "line one line two"},
		{"abcdefghij", 4, "abcd..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
