package constants

import "time"

// ContentTypeHeader is the HTTP Content-Type header name.
const ContentTypeHeader = "Content-Type"

// ContentTypeJSON is the media type of JSON responses.
const ContentTypeJSON = "application/json"

// ContentTypeText is the media type of exported log files.
const ContentTypeText = "text/plain; charset=utf-8"

// UserAgentHeader is the HTTP User-Agent header name.
const UserAgentHeader = "User-Agent"

// RequestIDByteSize is the number of random bytes in a generated request ID.
const RequestIDByteSize = 8

// ServerReadTimeout is the HTTP server read timeout
const ServerReadTimeout = 15 * time.Second

// ServerIdleTimeout is the HTTP server idle timeout
const ServerIdleTimeout = 60 * time.Second

// ServerShutdownTimeout is the timeout for graceful server shutdown
const ServerShutdownTimeout = 5 * time.Second

// RequestIDHeader carries a caller-supplied request ID.
const RequestIDHeader = "X-Request-ID"
