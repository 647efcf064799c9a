package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/turbocompute/gpulogs/internal/stream"
	"github.com/turbocompute/gpulogs/internal/testutil"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor  = 2 * time.Second
	waitTick = 5 * time.Millisecond
)

type modelFixture struct {
	model  *Model
	viewer *stream.Viewer
	socket *testutil.FakeSocket
	sink   *testutil.MemorySink
}

func newModelFixture(t *testing.T) *modelFixture {
	t.Helper()
	f := &modelFixture{
		socket: testutil.NewFakeSocket(),
		sink:   testutil.NewMemorySink(),
	}
	f.viewer = stream.NewViewer(stream.Options{
		URL:        "ws://logs.test/ws/logs",
		TargetID:   "job-1",
		AutoScroll: true,
		Dialer:     testutil.NewFakeDialer(f.socket),
		Clock:      testutil.NewFakeClock(testutil.FixedTime),
		Logger:     testutil.SilentLogger(),
	})
	t.Cleanup(f.viewer.Teardown)

	th := DefaultTheme()
	th.Syntax = false
	f.model = NewModel(context.Background(), f.viewer, f.sink, th)
	f.model.renderer.location = time.UTC
	f.model.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return f
}

func (f *modelFixture) connect(t *testing.T, lines ...string) {
	t.Helper()
	f.viewer.Start()
	require.Eventually(t, func() bool { return f.viewer.State() == stream.Connected }, waitFor, waitTick)
	for _, line := range lines {
		f.socket.Push(line)
	}
	require.Eventually(t, func() bool { return len(f.viewer.Entries()) == len(lines) }, waitFor, waitTick)
	f.model.Update(ChangedMsg{})
}

func (f *modelFixture) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = f.model.Update(keyMsg(k))
	}
	return cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func TestModel_RendersLines(t *testing.T) {
	f := newModelFixture(t)
	f.connect(t, "nvidia-smi ok", `{"line":"epoch 1 loss 0.3"}`)

	view := f.model.View()

	assert.Contains(t, view, "job-1")
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "2/5000 lines")
	assert.Contains(t, view, "0001")
	assert.Contains(t, view, "nvidia-smi ok")
	assert.Contains(t, view, "epoch 1 loss 0.3")
}

func TestModel_PauseKeyToggles(t *testing.T) {
	f := newModelFixture(t)
	f.connect(t, "a")

	f.press("p")
	assert.True(t, f.viewer.Paused())

	f.socket.Push("b")
	require.Eventually(t, func() bool { return f.viewer.Pending() == 1 }, waitFor, waitTick)
	assert.Contains(t, f.model.View(), "paused (1 staged)")

	f.press("p")
	assert.False(t, f.viewer.Paused())
	assert.Len(t, f.viewer.Entries(), 2)
}

func TestModel_ClearKey(t *testing.T) {
	f := newModelFixture(t)
	f.connect(t, "a", "b")

	f.press("c")

	assert.Empty(t, f.viewer.Entries())
	assert.Contains(t, f.model.View(), "cleared")
}

func TestModel_AutoScrollKey(t *testing.T) {
	f := newModelFixture(t)

	f.press("a")
	assert.False(t, f.viewer.AutoScroll())
	f.press("a")
	assert.True(t, f.viewer.AutoScroll())
}

func TestModel_FilterAppliesWhileTyping(t *testing.T) {
	f := newModelFixture(t)
	f.connect(t, "gpu0 ok", "gpu1 fault", "GPU1 retry")

	f.press("f", "g", "p", "u", "1")
	assert.Equal(t, "gpu1", f.viewer.Filter().FilterText)

	f.press("enter")
	f.model.Update(ChangedMsg{})
	view := f.model.View()
	assert.Contains(t, view, "gpu1 fault")
	assert.Contains(t, view, "GPU1 retry")
	assert.NotContains(t, view, "gpu0 ok")
	assert.Contains(t, view, "filter: gpu1")

	// Keys typed after accepting are commands again.
	f.press("p")
	assert.True(t, f.viewer.Paused())
}

func TestModel_EscRestoresAppliedText(t *testing.T) {
	f := newModelFixture(t)
	f.viewer.SetSearchText("loss")

	f.press("/", "x", "y")
	assert.Equal(t, "lossxy", f.viewer.Filter().SearchText)

	f.press("esc")
	assert.Equal(t, "loss", f.viewer.Filter().SearchText)
	assert.Equal(t, "loss", f.model.searchInput.Value())
	assert.Equal(t, modeNormal, f.model.mode)
}

func TestModel_Export(t *testing.T) {
	f := newModelFixture(t)
	f.connect(t, "a", "b")
	f.viewer.SetFilterText("a")

	cmd := f.press("s")
	require.NotNil(t, cmd)
	f.model.Update(cmd())

	names := f.sink.Names()
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "gpu-logs-job-1-"))
	assert.Equal(t, "[2025-01-02T03:04:05.678Z] a\n[2025-01-02T03:04:05.678Z] b", f.sink.Blob(names[0]))
	assert.Contains(t, f.model.View(), "exported to memory://"+names[0])
}

func TestModel_ExportFailure(t *testing.T) {
	f := newModelFixture(t)
	f.sink.Err = errors.New("disk full")

	cmd := f.press("s")
	require.NotNil(t, cmd)
	f.model.Update(cmd())

	assert.Contains(t, f.model.View(), "export failed: disk full")
}

func TestModel_ExportWithoutSink(t *testing.T) {
	f := newModelFixture(t)
	f.model.sink = nil

	assert.Nil(t, f.press("s"))
	assert.Contains(t, f.model.View(), "export is not configured")
}

func TestModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{name: "q", keys: []string{"q"}},
		{name: "ctrl+c", keys: []string{"ctrl+c"}},
		{name: "ctrl+c while typing a filter", keys: []string{"f", "x", "ctrl+c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newModelFixture(t)
			cmd := f.press(tt.keys...)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestModel_QTypedIntoFilter(t *testing.T) {
	f := newModelFixture(t)

	f.press("f", "q")

	assert.Equal(t, "q", f.viewer.Filter().FilterText)
	assert.Equal(t, modeFilter, f.model.mode)
}

func TestBridge_Coalesces(t *testing.T) {
	b := newBridge()
	for range 5 {
		b.OnChange()
		b.ScrollToEnd()
	}

	got := make(chan tea.Msg, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.run(ctx, func(msg tea.Msg) { got <- msg })

	var changed, scrolled int
	require.Eventually(t, func() bool {
		for {
			select {
			case msg := <-got:
				switch msg.(type) {
				case ChangedMsg:
					changed++
				case ScrollMsg:
					scrolled++
				}
			default:
				return changed == 1 && scrolled == 1
			}
		}
	}, waitFor, waitTick)
	assert.Never(t, func() bool { return len(got) > 0 }, 50*time.Millisecond, waitTick)
}
