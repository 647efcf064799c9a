package constants

import "time"

// DefaultMaxLines is the buffer capacity of the full viewer.
const DefaultMaxLines = 5000

// LiteMaxLines is the buffer capacity of the lightweight viewer.
const LiteMaxLines = 200

// ReconnectBaseDelay is the unit of the reconnect backoff.
const ReconnectBaseDelay = time.Second

// ReconnectMaxDelay caps every reconnect delay.
const ReconnectMaxDelay = 30 * time.Second

// ReconnectMaxExponent clamps the backoff exponent; attempts past it share the same delay.
const ReconnectMaxExponent = 6

// ScrollSettleDelay lets a visual update apply before scrolling to the end.
const ScrollSettleDelay = 20 * time.Millisecond

// HandshakeTimeout bounds the websocket opening handshake.
const HandshakeTimeout = 10 * time.Second

// RelayWriteTimeout bounds a single frame write from the relay to a subscriber.
const RelayWriteTimeout = 10 * time.Second

// RelaySubscribeWait is how long the relay waits for an optional subscribe frame after upgrade.
const RelaySubscribeWait = 500 * time.Millisecond

// RelayQueueSize is the per-subscriber frame queue; the oldest frames are dropped when it is full.
const RelayQueueSize = 512

// RelayMaxLineBytes is the longest source line the relay accepts.
const RelayMaxLineBytes = 1 << 20

// MaxConcurrentSends is the maximum number of concurrent sends to WebSocket connections
const MaxConcurrentSends = 10

// ExportPrefix is the file name prefix of exported log files.
const ExportPrefix = "gpu-logs"

// ExportAllTargets replaces the target identifier in export names when none is configured.
const ExportAllTargets = "all"

// TokenQueryParam is the query parameter carrying the optional stream auth token.
//
//nolint:gosec // G101: This is a parameter name, not a credential
const TokenQueryParam = "token"
