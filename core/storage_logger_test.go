package core

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
)

func TestSessionLogWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewSessionLogWriter(dir, SessionMetadata{SessionID: "sess-1", Username: "anh"})
	if err != nil {
		t.Fatalf("NewSessionLogWriter() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sess-1.active")); err != nil {
		t.Fatalf("active marker missing: %v", err)
	}

	base, lines := newCapturingLogger()
	logger := NewSessionLogger(base, writer).With(map[string]interface{}{"component": "test"})
	logger.Info("assistant turn appended", "length", 2)
	writer.Close()

	if len(*lines) != 1 {
		t.Fatalf("base logger got %d lines, want 1", len(*lines))
	}
	if _, err := os.Stat(filepath.Join(dir, "sess-1.active")); !os.IsNotExist(err) {
		t.Fatalf("active marker should be removed, stat error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "sess-1.jsonl"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var raw []string
	for scanner.Scan() {
		raw = append(raw, scanner.Text())
	}
	if len(raw) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(raw), raw)
	}

	var meta SessionMetadata
	if err := sonic.UnmarshalString(raw[0], &meta); err != nil {
		t.Fatalf("Unmarshal(meta) error = %v", err)
	}
	if meta.SessionID != "sess-1" || meta.Username != "anh" || meta.StartedAt == "" {
		t.Fatalf("meta = %+v", meta)
	}

	var entry LogEntry
	if err := sonic.UnmarshalString(raw[1], &entry); err != nil {
		t.Fatalf("Unmarshal(entry) error = %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "assistant turn appended" || entry.Attrs["component"] != "test" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestLoggerFromContext(t *testing.T) {
	fallback := NewLogger(nil)
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger")
	}
	session := NewLogger(nil)
	ctx := ContextWithSessionLogger(context.Background(), session)
	if got := LoggerFromContext(ctx, fallback); got != session {
		t.Fatal("expected session logger")
	}
}
