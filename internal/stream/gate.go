package stream

// GateState is the routing mode of a PauseGate.
type GateState int

const (
	// Flowing routes entries straight into the buffer.
	Flowing GateState = iota
	// Paused stages entries in the side buffer.
	Paused
)

// String returns the state name.
func (s GateState) String() string {
	if s == Paused {
		return "paused"
	}
	return "flowing"
}

// PauseGate routes entries either into the buffer or, while paused, into an
// unbounded side buffer that is flushed into the buffer on resume.
type PauseGate struct {
	buffer *Buffer
	side   []LogEntry
	state  GateState
}

// NewPauseGate creates a flowing gate in front of buffer.
func NewPauseGate(buffer *Buffer) *PauseGate {
	return &PauseGate{buffer: buffer}
}

// Route delivers an entry and reports whether it reached the buffer.
func (g *PauseGate) Route(entry LogEntry) bool {
	if g.state == Paused {
		g.side = append(g.side, entry)
		return false
	}
	g.buffer.Append(entry)
	return true
}

// Pause starts staging entries. It reports whether the state changed.
func (g *PauseGate) Pause() bool {
	if g.state == Paused {
		return false
	}
	g.state = Paused
	return true
}

// Resume flushes staged entries in arrival order through a single
// AppendBatch and returns how many were flushed. Resuming a flowing gate
// is a no-op returning 0.
func (g *PauseGate) Resume() int {
	if g.state == Flowing {
		return 0
	}
	g.state = Flowing

	staged := g.side
	g.side = nil
	g.buffer.AppendBatch(staged)
	return len(staged)
}

// State returns the current routing mode.
func (g *PauseGate) State() GateState {
	return g.state
}

// Paused reports whether entries are being staged.
func (g *PauseGate) Paused() bool {
	return g.state == Paused
}

// Pending returns the number of staged entries.
func (g *PauseGate) Pending() int {
	return len(g.side)
}

// DiscardPending drops staged entries without flushing them.
func (g *PauseGate) DiscardPending() {
	g.side = nil
}
