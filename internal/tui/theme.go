package tui

import (
	"errors"
	"fmt"
	"os"

	apperrors "github.com/turbocompute/gpulogs/internal/errors"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
)

// Theme holds the viewer colours. Colours are lipgloss colour strings:
// ANSI-256 indexes ("240") or hex ("#ff8800").
type Theme struct {
	LineNumbers   string `toml:"line_numbers"`
	Timestamp     string `toml:"timestamp"`
	StatusBar     string `toml:"status_bar"`
	StatusBarText string `toml:"status_bar_text"`
	SearchMatch   string `toml:"search_match"`
	SearchText    string `toml:"search_match_text"`
	Connected     string `toml:"connected"`
	Connecting    string `toml:"connecting"`
	Disconnected  string `toml:"disconnected"`
	Paused        string `toml:"paused"`
	Help          string `toml:"help"`

	// SyntaxStyle is a chroma style name used for JSON lines.
	SyntaxStyle string `toml:"syntax_style"`
	// Syntax enables chroma colouring of lines that look like JSON.
	Syntax bool `toml:"syntax"`
}

// DefaultTheme returns the built-in colours.
func DefaultTheme() Theme {
	return Theme{
		LineNumbers:   "240",
		Timestamp:     "244",
		StatusBar:     "236",
		StatusBarText: "252",
		SearchMatch:   "226",
		SearchText:    "16",
		Connected:     "42",
		Connecting:    "214",
		Disconnected:  "167",
		Paused:        "214",
		Help:          "240",
		SyntaxStyle:   "monokai",
		Syntax:        true,
	}
}

// LoadTheme reads a TOML theme from path on top of DefaultTheme.
// A missing file yields the defaults.
func LoadTheme(path string) (Theme, error) {
	theme := DefaultTheme()
	if path == "" {
		return theme, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return theme, nil
		}
		return theme, apperrors.ErrInvalidConfig("failed to read theme file", err)
	}

	if err = toml.Unmarshal(data, &theme); err != nil {
		return DefaultTheme(), apperrors.ErrInvalidConfig(fmt.Sprintf("invalid theme file %s", path), err)
	}
	return theme, nil
}

type styles struct {
	lineNumber   lipgloss.Style
	timestamp    lipgloss.Style
	match        lipgloss.Style
	statusBar    lipgloss.Style
	connected    lipgloss.Style
	connecting   lipgloss.Style
	disconnected lipgloss.Style
	paused       lipgloss.Style
	help         lipgloss.Style
}

func newStyles(t Theme) styles {
	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return styles{
		lineNumber: fg(t.LineNumbers),
		timestamp:  fg(t.Timestamp),
		match: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SearchMatch)).
			Foreground(lipgloss.Color(t.SearchText)),
		statusBar: lipgloss.NewStyle().
			Background(lipgloss.Color(t.StatusBar)).
			Foreground(lipgloss.Color(t.StatusBarText)),
		connected:    fg(t.Connected).Bold(true),
		connecting:   fg(t.Connecting).Bold(true),
		disconnected: fg(t.Disconnected).Bold(true),
		paused:       fg(t.Paused).Bold(true),
		help:         fg(t.Help),
	}
}
