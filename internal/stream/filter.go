package stream

import (
	"strings"
	"unicode/utf8"
)

// Span is a piece of a displayed line. At most one span per line is a match.
type Span struct {
	Text  string
	Match bool
}

// Line is a visible entry ready for rendering.
type Line struct {
	// Number is the 1-based position in the visible list.
	Number int
	Entry  LogEntry
	Spans  []Span
}

// Filter derives the displayed view of a buffer. It holds no state beyond
// its two inputs and never mutates the entries it is given.
type Filter struct {
	// FilterText hides entries whose text does not contain it (case-insensitive).
	FilterText string
	// SearchText marks the first case-insensitive occurrence in each visible line.
	SearchText string
}

// Matches reports whether text passes FilterText.
func (f Filter) Matches(text string) bool {
	if f.FilterText == "" {
		return true
	}
	start, _ := indexFold(text, f.FilterText)
	return start >= 0
}

// Visible returns the entries passing FilterText, in buffer order.
// An empty FilterText returns all entries.
func (f Filter) Visible(entries []LogEntry) []LogEntry {
	if f.FilterText == "" {
		return entries
	}
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e.Text) {
			out = append(out, e)
		}
	}
	return out
}

// Highlight splits text into spans, marking only the first case-insensitive
// occurrence of SearchText. Without a search term or a match the text is a
// single unmarked span.
func (f Filter) Highlight(text string) []Span {
	start, end := indexFold(text, f.SearchText)
	if start < 0 {
		return []Span{{Text: text}}
	}

	spans := make([]Span, 0, 3)
	if start > 0 {
		spans = append(spans, Span{Text: text[:start]})
	}
	spans = append(spans, Span{Text: text[start:end], Match: true})
	if end < len(text) {
		spans = append(spans, Span{Text: text[end:]})
	}
	return spans
}

// Apply returns the visible lines with their highlight spans.
func (f Filter) Apply(entries []LogEntry) []Line {
	visible := f.Visible(entries)
	lines := make([]Line, len(visible))
	for i, e := range visible {
		lines[i] = Line{
			Number: i + 1,
			Entry:  e,
			Spans:  f.Highlight(e.Text),
		}
	}
	return lines
}

// indexFold returns the byte range of the first case-insensitive occurrence
// of substr in s, or -1, -1. An empty substr never matches.
func indexFold(s, substr string) (int, int) {
	if substr == "" {
		return -1, -1
	}

	if isASCII(s) && isASCII(substr) {
		i := strings.Index(strings.ToLower(s), strings.ToLower(substr))
		if i < 0 {
			return -1, -1
		}
		return i, i + len(substr)
	}

	n := utf8.RuneCountInString(substr)
	for i := 0; i < len(s); {
		j, count := i, 0
		for count < n && j < len(s) {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
			count++
		}
		if count < n {
			break
		}
		if strings.EqualFold(s[i:j], substr) {
			return i, j
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
