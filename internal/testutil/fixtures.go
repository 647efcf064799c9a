// Package testutil provides shared testing utilities and helpers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"
	"github.com/turbocompute/gpulogs/internal/stream"
)

// FixedTime is the capture instant used by fixtures: 2025-01-02T03:04:05.678Z.
var FixedTime = time.Date(2025, time.January, 2, 3, 4, 5, 678_000_000, time.UTC)

// EntryBuilder provides a fluent interface for building test entries.
type EntryBuilder struct {
	entry stream.LogEntry
}

// NewEntryBuilder creates a new EntryBuilder with sensible defaults.
func NewEntryBuilder() *EntryBuilder {
	return &EntryBuilder{
		entry: stream.LogEntry{
			ID:        1,
			Text:      "gpu0 utilization 97%",
			Timestamp: FixedTime,
		},
	}
}

// WithID sets the entry id.
func (b *EntryBuilder) WithID(id uint64) *EntryBuilder {
	b.entry.ID = id
	return b
}

// WithText sets the entry text.
func (b *EntryBuilder) WithText(text string) *EntryBuilder {
	b.entry.Text = text
	return b
}

// WithTimestamp sets the capture time.
func (b *EntryBuilder) WithTimestamp(t time.Time) *EntryBuilder {
	b.entry.Timestamp = t
	return b
}

// Build returns the constructed entry.
func (b *EntryBuilder) Build() stream.LogEntry {
	return b.entry
}

// Entries builds one entry per text with ids 1..n, one second apart from FixedTime.
func Entries(texts ...string) []stream.LogEntry {
	out := make([]stream.LogEntry, len(texts))
	for i, text := range texts {
		out[i] = NewEntryBuilder().
			WithID(uint64(i + 1)).
			WithText(text).
			WithTimestamp(FixedTime.Add(time.Duration(i) * time.Second)).
			Build()
	}
	return out
}

// Texts returns the text of each entry.
func Texts(entries []stream.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// TestContext creates a test context with a reasonable timeout.
// Note: The cancel function is intentionally not returned since test contexts
// are expected to be short-lived and will be cleaned up when the test completes.
func TestContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), constants.TestContextTimeout)
	_ = cancel // Silence unused warning - context will timeout automatically
	return ctx
}

// TestLogger creates a logger suitable for testing (outputs to stderr).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

// SilentLogger creates a logger that discards all output.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
