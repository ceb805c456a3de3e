package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHandlerDropsEmptyAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelDebug, true, true))
	logger.Info("hello", "empty", "", "zero", 0, "ip", "127.0.0.1", "kept", "yes")
	out := buf.String()
	for _, s := range []string{"empty=", "zero=", "ip="} {
		if strings.Contains(out, s) {
			t.Errorf("output %q contains %q", out, s)
		}
	}
	if !strings.Contains(out, "kept=yes") {
		t.Errorf("output %q misses kept attribute", out)
	}
	if !strings.HasPrefix(out, "INF") {
		t.Errorf("time not dropped: %q", out)
	}
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelWarn)
	logger := slog.New(NewHandler(&buf, ll, true, true))
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn not logged")
	}
}
