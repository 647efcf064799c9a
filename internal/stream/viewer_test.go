package stream_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/turbocompute/gpulogs/internal/api"
	"github.com/turbocompute/gpulogs/internal/constants"
	"github.com/turbocompute/gpulogs/internal/stream"
	"github.com/turbocompute/gpulogs/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewerFixture struct {
	viewer  *stream.Viewer
	dialer  *testutil.FakeDialer
	clock   *testutil.FakeClock
	scrolls atomic.Int32
	changes atomic.Int32
}

func newViewerFixture(t *testing.T, opts stream.Options, sockets ...*testutil.FakeSocket) *viewerFixture {
	t.Helper()
	f := &viewerFixture{
		dialer: testutil.NewFakeDialer(sockets...),
		clock:  testutil.NewFakeClock(testutil.FixedTime),
	}
	if opts.URL == "" {
		opts.URL = testURL
	}
	opts.Dialer = f.dialer
	opts.Clock = f.clock
	opts.Logger = testutil.SilentLogger()
	opts.Scroller = stream.ScrollerFunc(func() { f.scrolls.Add(1) })
	opts.OnChange = func() { f.changes.Add(1) }
	f.viewer = stream.NewViewer(opts)
	t.Cleanup(f.viewer.Teardown)
	return f
}

func (f *viewerFixture) start(t *testing.T) {
	t.Helper()
	f.viewer.Start()
	require.Eventually(t, func() bool { return f.viewer.State() == stream.Connected }, waitFor, waitTick)
}

func (f *viewerFixture) waitEntries(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.viewer.Entries()) == n }, waitFor, waitTick,
		"expected %d entries", n)
}

func (f *viewerFixture) waitPending(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.viewer.Pending() == n }, waitFor, waitTick,
		"expected %d staged entries", n)
}

func lineTexts(lines []stream.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Entry.Text
	}
	return out
}

func TestViewer_IngestsAndTimestamps(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{TargetID: "job-7"}, sock)
	f.start(t)

	sock.Push("hello gpu")
	sock.Push(`{"line":"step 1"}`)
	f.waitEntries(t, 2)

	entries := f.viewer.Entries()
	assert.Equal(t, []string{"hello gpu", "step 1"}, testutil.Texts(entries))
	assert.Equal(t, uint64(1), entries[0].ID)
	assert.Equal(t, uint64(2), entries[1].ID)
	assert.Equal(t, testutil.FixedTime, entries[0].Timestamp)
	assert.Positive(t, f.changes.Load())
	assert.Equal(t, "job-7", f.viewer.TargetID())
}

func TestViewer_IDsContinueAcrossReconnects(t *testing.T) {
	first := testutil.NewFakeSocket()
	second := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{}, first, second)
	f.start(t)

	first.Push("a")
	first.Push("b")
	f.waitEntries(t, 2)

	first.CloseFromServer()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]time.Duration{2 * time.Second}, f.clock.Pending())
	}, waitFor, waitTick)
	assert.Equal(t, stream.Disconnected, f.viewer.State())

	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return f.viewer.State() == stream.Connected }, waitFor, waitTick)

	second.Push("c")
	f.waitEntries(t, 3)

	var ids []uint64
	for _, e := range f.viewer.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestViewer_EvictsBeyondCapacity(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{MaxLines: 3}, sock)
	f.start(t)

	for _, line := range []string{"a", "b", "c", "d"} {
		sock.Push(line)
	}
	require.Eventually(t, func() bool {
		entries := f.viewer.Entries()
		return len(entries) == 3 && entries[2].Text == "d"
	}, waitFor, waitTick)

	assert.Equal(t, []string{"b", "c", "d"}, testutil.Texts(f.viewer.Entries()))
	assert.Equal(t, 3, f.viewer.Capacity())
}

func TestViewer_OnEntrySeesEveryEntry(t *testing.T) {
	var mu sync.Mutex
	var seen []stream.LogEntry
	opts := stream.Options{
		MaxLines: 2,
		OnEntry: func(e stream.LogEntry) {
			mu.Lock()
			seen = append(seen, e)
			mu.Unlock()
		},
	}
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, opts, sock)
	f.start(t)

	sock.Push("a")
	sock.Push("b")
	f.waitEntries(t, 2)
	f.viewer.Pause()
	sock.Push("c")
	sock.Push("d")
	sock.Push("e")
	f.waitPending(t, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, testutil.Texts(seen))
	for i, e := range seen {
		assert.Equal(t, uint64(i+1), e.ID)
	}
	assert.Equal(t, []string{"a", "b"}, testutil.Texts(f.viewer.Entries()))
}

func TestViewer_EverConnected(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{}, sock)
	assert.False(t, f.viewer.EverConnected())

	f.start(t)
	sock.CloseFromServer()
	require.Eventually(t, func() bool { return f.viewer.State() == stream.Disconnected }, waitFor, waitTick)
	assert.True(t, f.viewer.EverConnected())
}

func TestViewer_NeverConnected(t *testing.T) {
	f := newViewerFixture(t, stream.Options{})
	f.viewer.Start()
	require.Eventually(t, func() bool { return len(f.clock.Pending()) == 1 }, waitFor, waitTick)
	assert.False(t, f.viewer.EverConnected())
}

func TestViewer_PauseResume(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{}, sock)
	f.start(t)

	sock.Push("before")
	f.waitEntries(t, 1)

	f.viewer.Pause()
	assert.True(t, f.viewer.Paused())
	sock.Push("p1")
	sock.Push("p2")
	f.waitPending(t, 2)
	assert.Equal(t, []string{"before"}, lineTexts(f.viewer.Lines()))

	f.viewer.Resume()
	assert.False(t, f.viewer.Paused())
	assert.Equal(t, 0, f.viewer.Pending())
	assert.Equal(t, []string{"before", "p1", "p2"}, lineTexts(f.viewer.Lines()))

	f.viewer.TogglePause()
	assert.True(t, f.viewer.Paused())
	f.viewer.TogglePause()
	assert.False(t, f.viewer.Paused())
}

func TestViewer_ClearDropsBufferAndStaged(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{}, sock)
	f.start(t)

	sock.Push("a")
	f.waitEntries(t, 1)
	f.viewer.Pause()
	sock.Push("staged")
	f.waitPending(t, 1)

	f.viewer.Clear()
	assert.Empty(t, f.viewer.Entries())
	assert.Equal(t, 0, f.viewer.Pending())
	assert.True(t, f.viewer.Paused(), "clear keeps the pause state")

	f.viewer.Resume()
	assert.Empty(t, f.viewer.Entries())

	sock.Push("after")
	f.waitEntries(t, 1)
	assert.Equal(t, uint64(3), f.viewer.Entries()[0].ID, "ids are never reused")
}

func TestViewer_FilterAndSearch(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{}, sock)
	f.start(t)

	for _, line := range []string{"GPU 0 ok", "loss=0.3", "gpu 1 ERROR", "done"} {
		sock.Push(line)
	}
	f.waitEntries(t, 4)

	f.viewer.SetFilterText("gpu")
	f.viewer.SetSearchText("error")
	lines := f.viewer.Lines()
	testutil.AssertLines(t, lines, "GPU 0 ok", "gpu 1 [ERROR]")
	assert.Equal(t, stream.Filter{FilterText: "gpu", SearchText: "error"}, f.viewer.Filter())

	f.viewer.SetFilterText("")
	assert.Len(t, f.viewer.Lines(), 4)
}

func TestViewer_AutoScrollCoalesces(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{AutoScroll: true}, sock)
	f.start(t)

	sock.Push("a")
	sock.Push("b")
	sock.Push("c")
	f.waitEntries(t, 3)

	assert.Equal(t, []time.Duration{constants.ScrollSettleDelay}, f.clock.Pending())
	f.clock.Advance(constants.ScrollSettleDelay)
	assert.Equal(t, int32(1), f.scrolls.Load())

	sock.Push("d")
	f.waitEntries(t, 4)
	f.clock.Advance(constants.ScrollSettleDelay)
	assert.Equal(t, int32(2), f.scrolls.Load())
}

func TestViewer_NoAutoScrollWhilePausedOrDisabled(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{AutoScroll: true}, sock)
	f.start(t)

	f.viewer.Pause()
	sock.Push("staged")
	f.waitPending(t, 1)
	assert.Empty(t, f.clock.Pending())

	f.viewer.Resume()
	f.viewer.SetAutoScroll(false)
	f.clock.Advance(constants.ScrollSettleDelay)
	assert.Equal(t, int32(0), f.scrolls.Load(), "disabled before the timer fired")
	assert.False(t, f.viewer.AutoScroll())

	sock.Push("more")
	f.waitEntries(t, 2)
	assert.Empty(t, f.clock.Pending())

	f.viewer.SetAutoScroll(true)
	f.clock.Advance(constants.ScrollSettleDelay)
	assert.Equal(t, int32(1), f.scrolls.Load())
}

func TestViewer_ExportIgnoresFilter(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{TargetID: "job-7"}, sock)
	f.start(t)

	for _, line := range []string{"err a", "ok b", "err c", "ok d", "ok e"} {
		sock.Push(line)
	}
	f.waitEntries(t, 5)
	f.viewer.SetFilterText("err")
	require.Len(t, f.viewer.Lines(), 2)

	sink := testutil.NewMemorySink()
	location, err := f.viewer.Export(testutil.TestContext(), sink)
	require.NoError(t, err)

	name := stream.ExportName(constants.ExportPrefix, "job-7", testutil.FixedTime)
	assert.True(t, strings.HasPrefix(name, "gpu-logs-job-7-"))
	assert.Equal(t, []string{name}, sink.Names())
	assert.Equal(t, "memory://"+name, location)

	blob := sink.Blob(name)
	assert.Len(t, strings.Split(blob, "\n"), 5)
	assert.Equal(t, f.viewer.Serialize(), blob)
	assert.True(t, strings.HasPrefix(blob, "[2025-01-02T03:04:05.678Z] err a"))
}

func TestViewer_ExportNameKeepsSlashedTarget(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{TargetID: "rack-2/gpu-5"}, sock)
	f.start(t)
	sock.Push("x")
	f.waitEntries(t, 1)

	sink := testutil.NewMemorySink()
	_, err := f.viewer.Export(testutil.TestContext(), sink)
	require.NoError(t, err)

	want := fmt.Sprintf("gpu-logs-rack-2_gpu-5-%d.log", testutil.FixedTime.UnixMilli())
	assert.Equal(t, []string{want}, sink.Names())
}

func TestViewer_ExportSinkError(t *testing.T) {
	f := newViewerFixture(t, stream.Options{})
	sink := testutil.NewMemorySink()
	sink.Err = errors.New("disk full")

	_, err := f.viewer.Export(testutil.TestContext(), sink)
	assert.ErrorIs(t, err, sink.Err)
}

func TestViewer_TeardownKeepsEntries(t *testing.T) {
	sock := testutil.NewFakeSocket()
	f := newViewerFixture(t, stream.Options{AutoScroll: true}, sock)
	f.start(t)

	sock.Push("kept")
	f.waitEntries(t, 1)

	f.viewer.Teardown()
	assert.Equal(t, stream.Disconnected, f.viewer.State())
	assert.Empty(t, f.clock.Pending(), "scroll and reconnect timers cancelled")
	assert.Equal(t, []string{"kept"}, testutil.Texts(f.viewer.Entries()))

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.dialer.DialCount())
	assert.Equal(t, int32(0), f.scrolls.Load())
}

func TestViewer_ReconnectBypassesBackoff(t *testing.T) {
	f := newViewerFixture(t, stream.Options{})
	f.viewer.Start()
	require.Eventually(t, func() bool { return len(f.clock.Pending()) == 1 }, waitFor, waitTick)

	sock := testutil.NewFakeSocket()
	f.dialer.Queue(sock)
	f.viewer.Reconnect()
	require.Eventually(t, func() bool { return f.viewer.State() == stream.Connected }, waitFor, waitTick)
	assert.Empty(t, f.clock.Pending())
}

func TestViewer_Websocket(t *testing.T) {
	type handshake struct {
		token string
		sub   api.SubscribeMessage
	}
	seen := make(chan handshake, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		var sub api.SubscribeMessage
		if err = conn.ReadJSON(&sub); err != nil {
			return
		}
		seen <- handshake{token: r.URL.Query().Get(constants.TokenQueryParam), sub: sub}

		_ = conn.WriteJSON(api.LogLineMessage{Line: "step 1"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("plain line"))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	defer srv.Close()

	clock := testutil.NewFakeClock(testutil.FixedTime)
	viewer := stream.NewViewer(stream.Options{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/logs",
		TargetID: "job-7",
		Token:    "secret",
		Clock:    clock,
		Logger:   testutil.SilentLogger(),
	})
	defer viewer.Teardown()
	viewer.Start()

	select {
	case hs := <-seen:
		assert.Equal(t, "secret", hs.token)
		assert.Equal(t, api.NewSubscribeMessage("job-7"), hs.sub)
	case <-time.After(waitFor):
		t.Fatal("server never received a subscribe frame")
	}

	require.Eventually(t, func() bool { return len(viewer.Entries()) == 2 }, waitFor, waitTick)
	assert.Equal(t, []string{"step 1", "plain line"}, testutil.Texts(viewer.Entries()))

	require.Eventually(t, func() bool {
		return viewer.State() == stream.Disconnected &&
			assert.ObjectsAreEqual([]time.Duration{2 * time.Second}, clock.Pending())
	}, waitFor, waitTick, "normal close schedules a reconnect")
}
