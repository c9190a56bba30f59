package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"verbose", zap.InfoLevel},
		{"", zap.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := New("warn", format)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", format, err)
		}
		if logger.Core().Enabled(zap.InfoLevel) {
			t.Errorf("format %q: info should be disabled at warn", format)
		}
		if !logger.Core().Enabled(zap.ErrorLevel) {
			t.Errorf("format %q: error should be enabled at warn", format)
		}
	}

	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
