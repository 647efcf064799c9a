package testutil

import (
	"strings"
	"testing"

	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/stretchr/testify/assert"
)

// AssertAppErrorCode checks the AppError code carried by err.
func AssertAppErrorCode(t *testing.T, err error, expectedCode string) bool {
	t.Helper()
	if !assert.Error(t, err) {
		return false
	}
	return assert.Equal(t, expectedCode, apperrors.GetErrorCode(err), "error: %v", err)
}

// AssertAppErrorStatus checks the HTTP status an AppError maps to.
func AssertAppErrorStatus(t *testing.T, err error, expectedStatus int) bool {
	t.Helper()
	return assert.Equal(t, expectedStatus, apperrors.GetStatusCode(err), "error: %v", err)
}

// MarkSpans renders spans as text with matches wrapped in brackets,
// e.g. "gpu 1 [ERROR] fault".
func MarkSpans(spans []stream.Span) string {
	var sb strings.Builder
	for _, span := range spans {
		if span.Match {
			sb.WriteString("[" + span.Text + "]")
			continue
		}
		sb.WriteString(span.Text)
	}
	return sb.String()
}

// AssertLines checks visible lines against their MarkSpans rendering, in order.
func AssertLines(t *testing.T, lines []stream.Line, want ...string) bool {
	t.Helper()
	got := make([]string, len(lines))
	for i, line := range lines {
		got[i] = MarkSpans(line.Spans)
	}
	return assert.Equal(t, want, got)
}
