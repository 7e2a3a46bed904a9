package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// CapturedRecord is a log record flattened for assertions.
type CapturedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture collects log records in memory.
type LogCapture struct {
	mu      sync.Mutex
	records []CapturedRecord
}

// NewCaptureLogger returns a logger that records every message at Debug and
// above, and the capture to inspect them.
func NewCaptureLogger() (*slog.Logger, *LogCapture) {
	c := &LogCapture{}
	return slog.New(&captureHandler{capture: c}), c
}

// Records returns a copy of the captured records.
func (c *LogCapture) Records() []CapturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedRecord, len(c.records))
	copy(out, c.records)
	return out
}

// AtLevel returns the records logged at exactly level.
func (c *LogCapture) AtLevel(level slog.Level) []CapturedRecord {
	var out []CapturedRecord
	for _, r := range c.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Warnings returns the records logged at Warn.
func (c *LogCapture) Warnings() []CapturedRecord {
	return c.AtLevel(slog.LevelWarn)
}

type captureHandler struct {
	capture *LogCapture
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := CapturedRecord{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.capture.mu.Lock()
	h.capture.records = append(h.capture.records, rec)
	h.capture.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &captureHandler{capture: h.capture, attrs: merged}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }
