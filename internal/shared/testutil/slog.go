// Package testutil provides shared helpers for tests, notably a buffered
// slog handler for asserting on log output.
package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogRecord is one captured log record.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// CaptureHandler buffers log records so tests can assert on them.
type CaptureHandler struct {
	mu      sync.Mutex
	records []LogRecord
	level   slog.Level
}

// NewCaptureHandler returns a handler capturing records at debug and above.
func NewCaptureHandler() *CaptureHandler {
	return &CaptureHandler{level: slog.LevelDebug}
}

// NewCaptureLogger returns a logger writing into a fresh CaptureHandler.
func NewCaptureLogger() (*slog.Logger, *CaptureHandler) {
	h := NewCaptureHandler()
	return slog.New(h), h
}

// Enabled implements slog.Handler.
func (h *CaptureHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	return nil
}

// WithAttrs implements slog.Handler. Attribute scoping is not needed for
// assertions, so the handler is shared.
func (h *CaptureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

// WithGroup implements slog.Handler.
func (h *CaptureHandler) WithGroup(_ string) slog.Handler { return h }

// Records returns a copy of the captured records.
func (h *CaptureHandler) Records() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogRecord, len(h.records))
	copy(out, h.records)
	return out
}

// HasMessage reports whether any captured record's message contains substr.
func (h *CaptureHandler) HasMessage(substr string) bool {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}
