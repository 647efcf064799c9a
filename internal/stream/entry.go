// Package stream implements the live log viewer core: one websocket connection
// with capped exponential reconnect backoff, a bounded entry buffer, a pause
// gate and the presentation filter that derives what is displayed.
package stream

import (
	"sync/atomic"
	"time"
)

// LogEntry is one captured line of streamed text.
// Entries are immutable once created.
type LogEntry struct {
	// ID is assigned at ingestion and strictly increases in arrival order.
	ID uint64
	// Text is the decoded line content.
	Text string
	// Timestamp is the client clock at capture time.
	Timestamp time.Time
}

// IDAllocator hands out entry ids for one viewer lifetime.
// The first id is 1 and ids never repeat, across reconnects included.
type IDAllocator struct {
	last atomic.Uint64
}

// Next returns the next id.
func (a *IDAllocator) Next() uint64 {
	return a.last.Add(1)
}
