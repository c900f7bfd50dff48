package core

import (
	"testing"
)

type capturedLine struct {
	level string
	msg   string
	attrs map[string]interface{}
}

func newCapturingLogger() (*Logger, *[]capturedLine) {
	lines := &[]capturedLine{}
	logger := NewLogger(func(level, msg string, attrs map[string]interface{}) {
		*lines = append(*lines, capturedLine{level: level, msg: msg, attrs: attrs})
	})
	return logger, lines
}

func TestLoggerKeyValuePairs(t *testing.T) {
	logger, lines := newCapturingLogger()
	logger.With(map[string]interface{}{"session": "s1"}).Info("turn appended", "role", "user", "length", 3)

	if len(*lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(*lines))
	}
	got := (*lines)[0]
	if got.level != "INFO" || got.msg != "turn appended" {
		t.Fatalf("line = %+v", got)
	}
	if got.attrs["session"] != "s1" || got.attrs["role"] != "user" || got.attrs["length"] != 3 {
		t.Fatalf("attrs = %v", got.attrs)
	}
}

func TestLoggerFormatArgs(t *testing.T) {
	logger, lines := newCapturingLogger()
	logger.Warnf("unit %d skipped", 2)

	if got := (*lines)[0].msg; got != "unit 2 skipped" {
		t.Fatalf("msg = %q, want %q", got, "unit 2 skipped")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	logger, lines := newCapturingLogger()
	filtered := logger.WithMinLevel(LevelWarn)

	filtered.Debug("dropped")
	filtered.Info("dropped")
	filtered.With(map[string]interface{}{"k": "v"}).Warn("kept")
	filtered.Error("kept")

	if len(*lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(*lines), *lines)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" WARNING ", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAttrsSorted(t *testing.T) {
	got := formatAttrs(map[string]interface{}{"b": 2, "a": 1})
	if got != " | a=1 b=2" {
		t.Fatalf("formatAttrs() = %q", got)
	}
}
