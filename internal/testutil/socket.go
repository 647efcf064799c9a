package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/gorilla/websocket"
)

// ErrDialRefused is returned by FakeDialer when no socket is queued.
var ErrDialRefused = errors.New("dial refused")

// ErrSocketClosed is returned by FakeSocket reads after Close.
var ErrSocketClosed = errors.New("use of closed network connection")

type readResult struct {
	data []byte
	err  error
}

// FakeSocket is an in-memory stream.Socket driven by the test.
type FakeSocket struct {
	incoming  chan readResult
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

// NewFakeSocket creates an open socket.
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		incoming: make(chan readResult, 64),
		closed:   make(chan struct{}),
	}
}

// Push delivers a text frame to the reader.
func (s *FakeSocket) Push(frame string) {
	s.incoming <- readResult{data: []byte(frame)}
}

// Fail makes the next read return err, as a dropped connection would.
func (s *FakeSocket) Fail(err error) {
	s.incoming <- readResult{err: err}
}

// CloseFromServer makes the next read return a normal close frame.
func (s *FakeSocket) CloseFromServer() {
	s.Fail(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"})
}

// FailWrites makes every write return err.
func (s *FakeSocket) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// ReadMessage blocks until a frame is pushed or the socket is closed.
func (s *FakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case r := <-s.incoming:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-s.closed:
		return 0, nil, ErrSocketClosed
	}
}

// WriteMessage records data.
func (s *FakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, slices.Clone(data))
	return nil
}

// Close closes the socket; further reads fail.
func (s *FakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSocket) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Written returns the frames written so far.
func (s *FakeSocket) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.written))
	for i, w := range s.written {
		out[i] = string(w)
	}
	return out
}

// FakeDialer hands out queued sockets in order; with none queued it refuses.
type FakeDialer struct {
	mu      sync.Mutex
	queue   []*FakeSocket
	dialed  []string
	sockets []*FakeSocket
}

// NewFakeDialer creates a dialer with the given sockets queued.
func NewFakeDialer(sockets ...*FakeSocket) *FakeDialer {
	return &FakeDialer{queue: sockets}
}

// Queue adds sockets for subsequent dials.
func (d *FakeDialer) Queue(sockets ...*FakeSocket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, sockets...)
}

// Dial returns the next queued socket or ErrDialRefused.
func (d *FakeDialer) Dial(ctx context.Context, rawURL string) (stream.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, rawURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.queue) == 0 {
		return nil, ErrDialRefused
	}
	s := d.queue[0]
	d.queue = d.queue[1:]
	d.sockets = append(d.sockets, s)
	return s, nil
}

// Dialed returns every URL dialed so far.
func (d *FakeDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.dialed)
}

// DialCount returns the number of dial attempts.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}
