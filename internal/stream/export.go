package stream

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"
)

// BlobSink stores a generated export artifact and returns where it went.
type BlobSink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Serialize renders entries as "[<ISO-8601 UTC>] <text>" lines joined by
// newlines. Callers pass the full buffer, so exports are never filtered.
func Serialize(entries []LogEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(e.Timestamp.UTC().Format(constants.ExportTimestampLayout))
		sb.WriteString("] ")
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// pathSeparators keeps a target id from turning the export name into a path.
var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// ExportName returns "<prefix>-<targetID or all>-<unix millis>.log". Path
// separators in targetID become underscores.
func ExportName(prefix, targetID string, now time.Time) string {
	if targetID == "" {
		targetID = constants.ExportAllTargets
	}
	targetID = pathSeparators.Replace(targetID)
	return prefix + "-" + targetID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + ".log"
}
