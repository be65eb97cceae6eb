package bootstrap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		logger := NewLogger(tt.level, "json")
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("NewLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "info", "json")
	logger.Info().Str("entity", "Post").Msg("saved")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"entity":"Post"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	logger = NewLoggerTo(&buf, "info", "console")
	logger.Info().Str("entity", "Post").Msg("saved")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "saved") {
		t.Errorf("console output = %q", buf.String())
	}

	buf.Reset()
	logger = NewLoggerTo(&buf, "warn", "json")
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %q", buf.String())
	}
}
