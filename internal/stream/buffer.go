package stream

import (
	"github.com/turbocompute/gpulogs/internal/constants"
)

// Buffer holds entries in arrival order and never grows past its capacity.
// When an append would exceed the capacity the oldest entries are evicted;
// survivors keep their order.
//
// A Buffer is not safe for concurrent use; the owning Viewer serializes access.
type Buffer struct {
	entries  []LogEntry
	maxLines int
}

// NewBuffer creates a buffer holding at most maxLines entries.
// A non-positive maxLines selects constants.DefaultMaxLines.
func NewBuffer(maxLines int) *Buffer {
	if maxLines <= 0 {
		maxLines = constants.DefaultMaxLines
	}
	return &Buffer{
		entries:  make([]LogEntry, 0, min(maxLines, initialBufferCapacity)),
		maxLines: maxLines,
	}
}

const initialBufferCapacity = 256

// Append adds one entry, evicting from the front when over capacity.
func (b *Buffer) Append(entry LogEntry) {
	b.entries = append(b.entries, entry)
	b.evict()
}

// AppendBatch adds entries in order as one update: eviction runs once, after
// the whole batch is concatenated.
func (b *Buffer) AppendBatch(entries []LogEntry) {
	if len(entries) == 0 {
		return
	}
	b.entries = append(b.entries, entries...)
	b.evict()
}

func (b *Buffer) evict() {
	over := len(b.entries) - b.maxLines
	if over <= 0 {
		return
	}
	// release evicted text before dropping the prefix
	clear(b.entries[:over])
	b.entries = b.entries[over:]
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	clear(b.entries)
	b.entries = b.entries[:0]
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []LogEntry {
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Cap returns the capacity (maxLines).
func (b *Buffer) Cap() int {
	return b.maxLines
}
