package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/turbocompute/gpulogs/internal/constants"
)

// Scroller moves a display surface to its end.
type Scroller interface {
	ScrollToEnd()
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func()

// ScrollToEnd calls f.
func (f ScrollerFunc) ScrollToEnd() {
	f()
}

// Options configures a Viewer.
type Options struct {
	// URL is the stream endpoint; empty leaves the viewer idle.
	URL string
	// TargetID is sent in the subscribe frame and used as a display label.
	TargetID string
	// Token, when set, is added to URL as the token query parameter.
	Token string
	// MaxLines is the buffer capacity; non-positive selects constants.DefaultMaxLines.
	MaxLines int
	// AutoScroll enables scrolling the surface to its end on every visible change.
	AutoScroll bool

	Dialer   Dialer
	Clock    Clock
	Scroller Scroller
	Logger   *slog.Logger
	// OnChange is called, outside the viewer lock, after any observable change.
	OnChange func()
	// OnEntry receives every ingested entry once, in arrival order, before
	// the pause gate or eviction sees it. It runs under the viewer lock and
	// must not call back into the viewer.
	OnEntry func(LogEntry)
}

// Viewer is one live log view: connection, buffer, pause gate and filter,
// created together and torn down together. All mutation is serialized by one
// mutex, so socket, timer and user callbacks never interleave.
//
// Viewer methods must not be called from inside OnChange or Scroller callbacks
// that run synchronously; hand them off to the host's event loop instead.
type Viewer struct {
	url      string
	targetID string
	clock    Clock
	scroller Scroller
	logger   *slog.Logger
	onChange func()
	onEntry  func(LogEntry)
	conn     *Connection

	mu          sync.Mutex
	ids         IDAllocator
	buffer      *Buffer
	gate        *PauseGate
	filter      Filter
	autoScroll  bool
	state       ConnectionState
	connected   bool
	scrollTimer Timer
}

// NewViewer creates an idle viewer; call Start to connect.
func NewViewer(opts Options) *Viewer {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("target_id", opts.TargetID)

	buffer := NewBuffer(opts.MaxLines)
	v := &Viewer{
		url:        WithToken(opts.URL, opts.Token),
		targetID:   opts.TargetID,
		clock:      clock,
		scroller:   opts.Scroller,
		logger:     logger,
		onChange:   opts.OnChange,
		onEntry:    opts.OnEntry,
		buffer:     buffer,
		gate:       NewPauseGate(buffer),
		autoScroll: opts.AutoScroll,
	}
	v.conn = NewConnection(opts.Dialer, clock, viewerListener{v}, logger)
	return v
}

// Start connects to the configured endpoint.
func (v *Viewer) Start() {
	v.conn.Connect(v.url, v.targetID)
}

// Reconnect bypasses the backoff and connects immediately.
func (v *Viewer) Reconnect() {
	v.conn.ManualReconnect()
}

// Teardown stops the connection and any pending timers. Buffered and staged
// entries are kept so a host can keep showing the last view.
func (v *Viewer) Teardown() {
	v.conn.Teardown()

	v.mu.Lock()
	if v.scrollTimer != nil {
		v.scrollTimer.Stop()
		v.scrollTimer = nil
	}
	v.mu.Unlock()
}

// TargetID returns the configured target identifier.
func (v *Viewer) TargetID() string {
	return v.targetID
}

// State returns the last reported connectivity.
func (v *Viewer) State() ConnectionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// EverConnected reports whether the connection has opened at least once.
func (v *Viewer) EverConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// Pause stages incoming entries instead of showing them.
func (v *Viewer) Pause() {
	v.mu.Lock()
	changed := v.gate.Pause()
	v.mu.Unlock()

	if changed {
		v.logger.Debug("viewer paused")
		v.notify()
	}
}

// Resume flushes staged entries into the buffer and shows new entries again.
func (v *Viewer) Resume() {
	v.mu.Lock()
	wasPaused := v.gate.Paused()
	flushed := v.gate.Resume()
	if wasPaused {
		v.scheduleScrollLocked()
	}
	v.mu.Unlock()

	if wasPaused {
		v.logger.Debug("viewer resumed", "flushed", flushed)
		v.notify()
	}
}

// TogglePause flips between paused and flowing.
func (v *Viewer) TogglePause() {
	if v.Paused() {
		v.Resume()
		return
	}
	v.Pause()
}

// Paused reports whether incoming entries are being staged.
func (v *Viewer) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gate.Paused()
}

// Pending returns the number of staged entries.
func (v *Viewer) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gate.Pending()
}

// Clear empties both the buffer and the staged entries.
func (v *Viewer) Clear() {
	v.mu.Lock()
	v.gate.DiscardPending()
	v.buffer.Clear()
	v.scheduleScrollLocked()
	v.mu.Unlock()

	v.notify()
}

// SetFilterText sets the case-insensitive substring filter.
func (v *Viewer) SetFilterText(text string) {
	v.mu.Lock()
	changed := v.filter.FilterText != text
	v.filter.FilterText = text
	if changed {
		v.scheduleScrollLocked()
	}
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// SetSearchText sets the case-insensitive highlight term.
func (v *Viewer) SetSearchText(text string) {
	v.mu.Lock()
	changed := v.filter.SearchText != text
	v.filter.SearchText = text
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// Filter returns the current filter inputs.
func (v *Viewer) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// SetAutoScroll enables or disables scrolling to the end on visible changes.
func (v *Viewer) SetAutoScroll(enabled bool) {
	v.mu.Lock()
	changed := v.autoScroll != enabled
	v.autoScroll = enabled
	if changed {
		v.scheduleScrollLocked()
	}
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// AutoScroll reports whether auto-scroll is enabled.
func (v *Viewer) AutoScroll() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoScroll
}

// Lines returns the visible lines with highlight spans.
func (v *Viewer) Lines() []Line {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter.Apply(v.buffer.Entries())
}

// Entries returns every buffered entry regardless of the filter.
func (v *Viewer) Entries() []LogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buffer.Entries()
}

// Capacity returns the buffer capacity.
func (v *Viewer) Capacity() int {
	return v.buffer.Cap()
}

// Serialize renders the full, unfiltered buffer for export.
func (v *Viewer) Serialize() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Serialize(v.buffer.Entries())
}

// Export writes the unfiltered buffer to sink under the standard export name
// and returns the sink's location for it.
func (v *Viewer) Export(ctx context.Context, sink BlobSink) (string, error) {
	v.mu.Lock()
	name := ExportName(constants.ExportPrefix, v.targetID, v.clock.Now())
	data := Serialize(v.buffer.Entries())
	v.mu.Unlock()

	location, err := sink.Save(ctx, name, []byte(data))
	if err != nil {
		return "", err
	}
	v.logger.Info("logs exported", "location", location, "bytes", len(data))
	return location, nil
}

func (v *Viewer) ingest(text string) {
	v.mu.Lock()
	entry := LogEntry{
		ID:        v.ids.Next(),
		Text:      text,
		Timestamp: v.clock.Now(),
	}
	if v.onEntry != nil {
		v.onEntry(entry)
	}
	if v.gate.Route(entry) {
		v.scheduleScrollLocked()
	}
	v.mu.Unlock()

	v.notify()
}

func (v *Viewer) setState(state ConnectionState) {
	v.mu.Lock()
	changed := v.state != state
	v.state = state
	if state == Connected {
		v.connected = true
	}
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// scheduleScrollLocked arms one settle timer after which the surface is
// scrolled to its end, unless auto-scroll got disabled or the view paused.
func (v *Viewer) scheduleScrollLocked() {
	if v.scroller == nil || !v.autoScroll || v.gate.Paused() || v.scrollTimer != nil {
		return
	}
	v.scrollTimer = v.clock.AfterFunc(constants.ScrollSettleDelay, v.scrollToEnd)
}

func (v *Viewer) scrollToEnd() {
	v.mu.Lock()
	if v.scrollTimer == nil {
		v.mu.Unlock()
		return
	}
	v.scrollTimer = nil
	ok := v.autoScroll && !v.gate.Paused()
	v.mu.Unlock()

	if ok {
		v.scroller.ScrollToEnd()
	}
}

func (v *Viewer) notify() {
	if v.onChange != nil {
		v.onChange()
	}
}

// viewerListener keeps the Listener methods off the Viewer API.
type viewerListener struct {
	v *Viewer
}

func (l viewerListener) OnStateChange(state ConnectionState) {
	l.v.setState(state)
}

func (l viewerListener) OnLine(text string) {
	l.v.ingest(text)
}
