// Package relay serves log lines read from local sources to websocket
// viewers. Each target keeps a replay ring so late subscribers start with
// recent context.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/turbocompute/gpulogs/internal/api"
	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// AllTargets is the subscription key of viewers that did not pick a target.
const AllTargets = ""

// Conn is the subscriber side of a websocket. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub fans published lines out to subscribers.
type Hub struct {
	logger *slog.Logger
	replay int

	mu          sync.Mutex
	rings       map[string]*ring
	subscribers map[*Subscriber]struct{}
	active      map[string]int
	started     bool
	lines       uint64
}

// NewHub creates a hub keeping the last replay lines per target.
func NewHub(replay int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:      logger,
		replay:      max(replay, 0),
		rings:       make(map[string]*ring),
		subscribers: make(map[*Subscriber]struct{}),
		active:      make(map[string]int),
	}
}

// Begin registers a source for target. Subscribers of a target are closed
// once all its sources ended; AllTargets subscribers once every source did.
func (h *Hub) Begin(target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	h.active[target]++
}

// End marks one source of target as finished.
func (h *Hub) End(target string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active[target] > 0 {
		h.active[target]--
	}
	if h.active[target] == 0 {
		delete(h.active, target)
	}

	for s := range h.subscribers {
		if h.finishedLocked(s.target) {
			s.finish()
		}
	}
	h.logger.Info("source ended", "target_id", target, "active_sources", len(h.active))
}

// Publish appends text to the replay rings and queues it for every matching subscriber.
func (h *Hub) Publish(target, text string) {
	frame, err := json.Marshal(api.LogLineMessage{Line: text})
	if err != nil {
		h.logger.Error("failed to encode line", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines++
	h.ringLocked(target).add(frame)
	if target != AllTargets {
		h.ringLocked(AllTargets).add(frame)
	}

	for s := range h.subscribers {
		if s.target == AllTargets || s.target == target {
			s.enqueue(frame)
		}
	}
}

// Subscribe registers conn for target and queues the replay backlog.
// The caller runs the returned subscriber with Run.
func (h *Hub) Subscribe(conn Conn, target string) *Subscriber {
	s := newSubscriber(h, conn, target, max(constants.RelayQueueSize, h.replay+1))

	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rings[target]; ok {
		for _, frame := range r.snapshot() {
			s.enqueue(frame)
		}
	}
	if h.finishedLocked(target) {
		s.finish()
	}
	h.subscribers[s] = struct{}{}
	return s
}

// Stats returns the subscriber count and the number of lines published.
func (h *Hub) Stats() (subscribers int, lines uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers), h.lines
}

// Shutdown sends a going-away close frame to every subscriber and closes them.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxConcurrentSends)
	for _, s := range subs {
		g.Go(func() error {
			deadline := time.Now().Add(constants.RelayWriteTimeout)
			if d, ok := gctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = s.conn.Close()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				h.logger.Debug("close frame not sent", "target_id", s.target, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s)
}

// finishedLocked reports whether no more lines can arrive for target.
func (h *Hub) finishedLocked(target string) bool {
	if !h.started {
		return false
	}
	if target == AllTargets {
		return len(h.active) == 0
	}
	return h.active[target] == 0
}

func (h *Hub) ringLocked(target string) *ring {
	r, ok := h.rings[target]
	if !ok {
		r = newRing(h.replay)
		h.rings[target] = r
	}
	return r
}

// ring keeps the most recent frames, oldest first on snapshot.
type ring struct {
	frames [][]byte
	head   int
	full   bool
}

func newRing(capacity int) *ring {
	return &ring{frames: make([][]byte, capacity)}
}

func (r *ring) add(frame []byte) {
	if len(r.frames) == 0 {
		return
	}
	r.frames[r.head] = frame
	r.head = (r.head + 1) % len(r.frames)
	if r.head == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() [][]byte {
	if !r.full {
		return append([][]byte(nil), r.frames[:r.head]...)
	}
	out := make([][]byte, 0, len(r.frames))
	out = append(out, r.frames[r.head:]...)
	return append(out, r.frames[:r.head]...)
}
