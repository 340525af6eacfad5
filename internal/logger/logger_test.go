package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		mode, level string
		want        zapcore.Level
		wantErr     bool
	}{
		{"prod", "", zapcore.InfoLevel, false},
		{"production", "warn", zapcore.WarnLevel, false},
		{"dev", "debug", zapcore.DebugLevel, false},
		{"", "ERROR", zapcore.ErrorLevel, false},
		{"dev", "loud", 0, true},
	}
	for _, tt := range tests {
		l, err := New(tt.mode, tt.level)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q, %q): expected error", tt.mode, tt.level)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tt.mode, tt.level, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("New(%q, %q): level %v not enabled", tt.mode, tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q, %q): level %v should be disabled", tt.mode, tt.level, tt.want-1)
		}
	}
}
