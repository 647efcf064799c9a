package stream

import (
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"
)

// BackoffDelay returns the reconnect delay for the given attempt (1 for the
// first retry): min(30s, 1s * 2^min(6, attempt)). Attempts from 5 on all hit
// the 30s cap.
func BackoffDelay(attempt int) time.Duration {
	exp := min(max(attempt, 0), constants.ReconnectMaxExponent)
	return min(constants.ReconnectMaxDelay, constants.ReconnectBaseDelay<<exp)
}
