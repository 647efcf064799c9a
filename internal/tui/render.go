package tui

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"
	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/alecthomas/chroma/v2/quick"
)

const (
	syntaxLexer     = "json"
	syntaxFormatter = "terminal256"
)

// renderer turns visible lines into terminal text.
type renderer struct {
	styles      styles
	syntax      bool
	syntaxStyle string
	location    *time.Location
}

func newRenderer(t Theme) *renderer {
	return &renderer{
		styles:      newStyles(t),
		syntax:      t.Syntax,
		syntaxStyle: t.SyntaxStyle,
		location:    time.Local,
	}
}

// Render joins the lines into viewport content.
func (r *renderer) Render(lines []stream.Line) string {
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.line(line))
	}
	return sb.String()
}

func (r *renderer) line(line stream.Line) string {
	number := r.styles.lineNumber.Render(fmt.Sprintf("%0*d", constants.LineNumberWidth, line.Number))
	stamp := r.styles.timestamp.Render(line.Entry.Timestamp.In(r.location).Format(constants.DisplayTimeLayout))
	return number + " " + stamp + " " + r.body(line.Spans)
}

// body renders the text spans. A line with a search match keeps its match
// colouring instead of syntax colouring.
func (r *renderer) body(spans []stream.Span) string {
	if len(spans) == 1 && !spans[0].Match {
		return r.colour(spans[0].Text)
	}

	var sb strings.Builder
	for _, span := range spans {
		if span.Match {
			sb.WriteString(r.styles.match.Render(span.Text))
			continue
		}
		sb.WriteString(span.Text)
	}
	return sb.String()
}

func (r *renderer) colour(text string) string {
	if !r.syntax || !looksLikeJSON(text) {
		return text
	}

	var buf bytes.Buffer
	if err := quick.Highlight(&buf, text, syntaxLexer, syntaxFormatter, r.syntaxStyle); err != nil {
		return text
	}
	return strings.NewReplacer("\n", "", "\r", "").Replace(buf.String())
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}
