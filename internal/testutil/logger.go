package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// LogBuffer collects JSON log lines for assertions
type LogBuffer struct {
	buf bytes.Buffer
}

// BufferLogger returns a debug-level JSON logger writing into a LogBuffer
func BufferLogger() (*slog.Logger, *LogBuffer) {
	lb := &LogBuffer{}
	return slog.New(slog.NewJSONHandler(&lb.buf, &slog.HandlerOptions{Level: slog.LevelDebug})), lb
}

// Entries decodes every logged line; lines that are not JSON are skipped
func (lb *LogBuffer) Entries() []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(lb.buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

// Find returns the first entry with the given message, or nil
func (lb *LogBuffer) Find(msg string) map[string]any {
	for _, e := range lb.Entries() {
		if e["msg"] == msg {
			return e
		}
	}
	return nil
}
