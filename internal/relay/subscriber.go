package relay

import (
	"context"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/gorilla/websocket"
)

// Subscriber is one connected viewer. Frames are queued by the hub and
// written by Run, so a slow viewer never blocks publishing; when its queue
// is full the oldest frames are dropped.
type Subscriber struct {
	hub    *Hub
	conn   Conn
	target string
	queue  chan []byte

	// guarded by hub.mu
	finished bool
	dropped  int
}

func newSubscriber(hub *Hub, conn Conn, target string, size int) *Subscriber {
	return &Subscriber{
		hub:    hub,
		conn:   conn,
		target: target,
		queue:  make(chan []byte, size),
	}
}

// Target returns the subscribed target, AllTargets for everything.
func (s *Subscriber) Target() string {
	return s.target
}

// Run writes queued frames until the stream finishes, ctx is cancelled or a
// write fails. A finished stream ends with a normal close frame.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.hub.remove(s)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-s.queue:
			if !ok {
				return s.closeNormally()
			}
			if err := s.write(frame); err != nil {
				return err
			}
		}
	}
}

// Dropped returns how many frames were discarded for this subscriber.
func (s *Subscriber) Dropped() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) write(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(constants.RelayWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Subscriber) closeNormally() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(constants.RelayWriteTimeout))
}

// enqueue is called with hub.mu held.
func (s *Subscriber) enqueue(frame []byte) {
	if s.finished {
		return
	}
	select {
	case s.queue <- frame:
		return
	default:
	}
	select {
	case <-s.queue:
		s.dropped++
	default:
	}
	select {
	case s.queue <- frame:
	default:
		s.dropped++
	}
}

// finish is called with hub.mu held.
func (s *Subscriber) finish() {
	if s.finished {
		return
	}
	s.finished = true
	close(s.queue)
}
