package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/gorilla/websocket"
)

// Socket is a duplex, message based connection. *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens sockets. Dial must honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Socket, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// NewWebsocketDialer creates a dialer with the project handshake timeout and User-Agent.
func NewWebsocketDialer() *WebsocketDialer {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = constants.HandshakeTimeout

	header := http.Header{}
	header.Set(constants.UserAgentHeader, constants.UserAgent())

	return &WebsocketDialer{
		dialer: &dialer,
		header: header,
	}
}

// Dial opens a websocket to rawURL.
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Socket, error) {
	conn, httpResp, err := d.dialer.DialContext(ctx, rawURL, d.header)
	if httpResp != nil && httpResp.Body != nil {
		_ = httpResp.Body.Close()
	}
	if err != nil {
		if httpResp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", httpResp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}
	return conn, nil
}

// WithToken returns rawURL with the auth token added as a query parameter.
// An empty token or an unparsable URL returns rawURL unchanged; the latter
// then fails at dial time and follows the reconnect path.
func WithToken(rawURL, token string) string {
	if token == "" || rawURL == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(constants.TokenQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// redactURL strips the query string so tokens never reach the logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
