package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/turbocompute/gpulogs/internal/api"

	"github.com/gorilla/websocket"
)

// ConnectionState is the connectivity of a stream.
type ConnectionState int

const (
	// Disconnected means no socket is open; a reconnect may be pending.
	Disconnected ConnectionState = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means the socket is open and frames are being read.
	Connected
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Listener receives connection events. Callbacks for one Connection never run
// concurrently, and a Listener must not call back into the Connection.
type Listener interface {
	OnStateChange(state ConnectionState)
	OnLine(text string)
}

type nopListener struct{}

func (nopListener) OnStateChange(ConnectionState) {}
func (nopListener) OnLine(string)                 {}

// Connection owns one live socket to a log endpoint. It reconnects after
// every close with capped exponential backoff until torn down. Failures never
// surface as errors, only as ConnectionState.
//
// Each connect attempt gets a generation; events, timers and dials from an
// older generation are ignored, so a stale timer can never reconnect over a
// newer socket.
type Connection struct {
	dialer   Dialer
	clock    Clock
	logger   *slog.Logger
	listener Listener

	// emitMu serializes listener callbacks and orders them against Teardown.
	// Never acquire it while holding mu.
	emitMu  sync.Mutex
	emitted ConnectionState

	mu          sync.Mutex
	url         string
	subscribeID string
	state       ConnectionState
	gen         uint64
	socket      Socket
	cancelDial  context.CancelFunc
	attempt     int
	timer       Timer
	tornDown    bool
}

// NewConnection creates an idle connection. Nil dependencies fall back to
// the gorilla dialer, the system clock, a no-op listener and slog.Default.
func NewConnection(dialer Dialer, clock Clock, listener Listener, logger *slog.Logger) *Connection {
	if dialer == nil {
		dialer = NewWebsocketDialer()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if listener == nil {
		listener = nopListener{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		dialer:   dialer,
		clock:    clock,
		listener: listener,
		logger:   logger,
	}
}

// Connect opens a socket to rawURL without blocking. When subscribeID is set
// a subscribe frame is sent once the socket opens. An empty rawURL leaves the
// connection idle. Any previous socket or pending reconnect is superseded.
func (c *Connection) Connect(rawURL, subscribeID string) {
	c.mu.Lock()
	c.url = rawURL
	c.subscribeID = subscribeID
	c.tornDown = false
	c.stopTimerLocked()
	gen := c.startLocked()
	c.mu.Unlock()

	c.emitState(gen)
}

// ManualReconnect closes the active socket, resets the backoff and connects
// again immediately.
func (c *Connection) ManualReconnect() {
	c.mu.Lock()
	c.tornDown = false
	c.stopTimerLocked()
	c.attempt = 0
	gen := c.startLocked()
	rawURL := c.url
	c.mu.Unlock()

	c.logger.Info("manual reconnect", "url", redactURL(rawURL))
	c.emitState(gen)
}

// Teardown cancels any pending reconnect and closes the socket without
// scheduling another attempt. It is idempotent. No listener callback runs
// after Teardown returns, except for a later Connect.
func (c *Connection) Teardown() {
	c.mu.Lock()
	c.tornDown = true
	c.stopTimerLocked()
	c.gen++
	c.dropSocketLocked()
	c.state = Disconnected
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.emitted != Disconnected {
		c.emitted = Disconnected
		c.listener.OnStateChange(Disconnected)
	}
}

// State returns the current connectivity.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempt returns the number of reconnects scheduled since the last successful open.
func (c *Connection) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// ReconnectPending reports whether a reconnect timer is armed.
func (c *Connection) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Connection) startLocked() uint64 {
	c.gen++
	c.dropSocketLocked()
	if c.url == "" {
		c.state = Disconnected
		return c.gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.state = Connecting
	go c.run(ctx, c.gen, c.url, c.subscribeID)
	return c.gen
}

func (c *Connection) dropSocketLocked() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}
}

func (c *Connection) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// run dials and then reads frames until the socket closes.
func (c *Connection) run(ctx context.Context, gen uint64, rawURL, subscribeID string) {
	log := c.logger.With("url", redactURL(rawURL))

	sock, err := c.dialer.Dial(ctx, rawURL)
	if err != nil {
		if c.current(gen) {
			log.Warn("stream connection failed", "error", err)
		}
		c.handleClose(gen)
		return
	}

	if !c.handleOpen(gen, sock) {
		_ = sock.Close()
		return
	}
	log.Info("stream connected")
	c.emitState(gen)

	if subscribeID != "" {
		c.subscribe(sock, subscribeID, log)
	}

	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				log.Debug("stream closed by server", "error", err)
			} else {
				c.handleError(gen, sock, err, log)
			}
			c.handleClose(gen)
			return
		}
		c.handleMessage(gen, payload)
	}
}

func (c *Connection) handleOpen(gen uint64, sock Socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.socket = sock
	c.state = Connected
	c.attempt = 0
	return true
}

func (c *Connection) handleMessage(gen uint64, payload []byte) {
	text := DecodeFrame(payload)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if !c.current(gen) {
		return
	}
	c.listener.OnLine(text)
}

// handleError logs and force-closes the socket. Scheduling is left to
// handleClose so an error never arms a second reconnect.
func (c *Connection) handleError(gen uint64, sock Socket, err error, log *slog.Logger) {
	if !c.current(gen) {
		return
	}
	log.Warn("stream error", "error", err)
	_ = sock.Close()
}

func (c *Connection) handleClose(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.dropSocketLocked()
	c.state = Disconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.emitState(gen)
}

// scheduleReconnectLocked arms the single reconnect timer; it is a no-op
// while one is already pending.
func (c *Connection) scheduleReconnectLocked() {
	if c.timer != nil {
		return
	}
	c.attempt++
	delay := BackoffDelay(c.attempt)
	gen := c.gen
	c.timer = c.clock.AfterFunc(delay, func() {
		c.reconnect(gen)
	})
	c.logger.Info("stream reconnect scheduled", "attempt", c.attempt, "delay", delay)
}

func (c *Connection) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	next := c.startLocked()
	c.mu.Unlock()

	c.emitState(next)
}

func (c *Connection) subscribe(sock Socket, subscribeID string, log *slog.Logger) {
	data, err := json.Marshal(api.NewSubscribeMessage(subscribeID))
	if err != nil {
		log.Debug("failed to encode subscribe frame", "error", err)
		return
	}
	if err = sock.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug("subscribe frame not sent", "target_id", subscribeID, "error", err)
	}
}

func (c *Connection) emitState(gen uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	state, ok := c.state, gen == c.gen
	c.mu.Unlock()
	if !ok || state == c.emitted {
		return
	}
	c.emitted = state
	c.listener.OnStateChange(state)
}

func (c *Connection) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
}
