package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/turbocompute/gpulogs/internal/stream"

	tea "github.com/charmbracelet/bubbletea"
)

// Options configures Run.
type Options struct {
	Stream stream.Options
	Sink   stream.BlobSink
	Theme  Theme
	// Input and Output default to the terminal.
	Input  io.Reader
	Output io.Writer
}

// Run shows a live viewer until the user quits or ctx ends. The viewer is
// torn down before Run returns.
func Run(ctx context.Context, opts Options) error {
	b := newBridge()
	opts.Stream.OnChange = b.OnChange
	opts.Stream.Scroller = b

	viewer := stream.NewViewer(opts.Stream)
	defer viewer.Teardown()

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	program := tea.NewProgram(NewModel(ctx, viewer, opts.Sink, opts.Theme), programOpts...)

	bridgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.run(bridgeCtx, program.Send)

	viewer.Start()
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer terminated: %w", err)
	}
	return nil
}

// bridge forwards viewer callbacks to the program without blocking the
// caller. Bursts collapse into one message of each kind.
type bridge struct {
	changed chan struct{}
	scroll  chan struct{}
}

func newBridge() *bridge {
	return &bridge{
		changed: make(chan struct{}, 1),
		scroll:  make(chan struct{}, 1),
	}
}

// OnChange is the viewer's change callback.
func (b *bridge) OnChange() {
	signal(b.changed)
}

// ScrollToEnd implements stream.Scroller.
func (b *bridge) ScrollToEnd() {
	signal(b.scroll)
}

func (b *bridge) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.changed:
			send(ChangedMsg{})
		case <-b.scroll:
			send(ScrollMsg{})
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
