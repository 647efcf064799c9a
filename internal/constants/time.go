package constants

import "time"

// TestContextTimeout is the timeout for test contexts.
const TestContextTimeout = 5 * time.Second

// ExportTimestampLayout is the ISO-8601 layout used in exported log lines (UTC, millisecond precision).
const ExportTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DisplayTimeLayout is the layout of the local-time timestamp column in renderers.
const DisplayTimeLayout = "15:04:05.000"
