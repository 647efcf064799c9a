package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Pause      key.Binding
	Clear      key.Binding
	Export     key.Binding
	Reconnect  key.Binding
	AutoScroll key.Binding
	Filter     key.Binding
	Search     key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Quit       key.Binding
	Accept     key.Binding
	Cancel     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Export, k.Reconnect, k.AutoScroll, k.Filter, k.Search, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Clear, k.Export, k.Reconnect, k.AutoScroll},
		{k.Filter, k.Search, k.Top, k.Bottom, k.Quit},
	}
}

var keys = keyMap{
	Pause:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Clear:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Export:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "export")),
	Reconnect:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect")),
	AutoScroll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-scroll")),
	Filter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Top:        key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:     key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Accept:     key.NewBinding(key.WithKeys("enter")),
	Cancel:     key.NewBinding(key.WithKeys("esc")),
}
