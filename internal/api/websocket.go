// Package api defines the wire types exchanged with log stream endpoints.
package api

// WebSocketMessageType represents the type of WebSocket message
type WebSocketMessageType string

const (
	// WebSocketMessageTypeSubscribe asks the server for a single target's stream
	WebSocketMessageTypeSubscribe WebSocketMessageType = "subscribe"
)

// SubscribeMessage is the optional handshake sent right after a stream opens.
// It is advisory: servers may ignore it and clients never wait for an answer.
type SubscribeMessage struct {
	Type WebSocketMessageType `json:"type"`
	ID   string               `json:"id"`
}

// NewSubscribeMessage builds the subscribe frame for targetID.
func NewSubscribeMessage(targetID string) SubscribeMessage {
	return SubscribeMessage{
		Type: WebSocketMessageTypeSubscribe,
		ID:   targetID,
	}
}

// LogLineMessage is the JSON form of a streamed line.
// Streams may also send bare text frames, which carry the line verbatim.
type LogLineMessage struct {
	Line string `json:"line"`
}
