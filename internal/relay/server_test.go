package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
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

const (
	waitFor  = 2 * time.Second
	waitTick = 5 * time.Millisecond
)

func newTestServer(t *testing.T, hub *Hub) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(hub, testutil.SilentLogger())
	s.subscribeWait = 50 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntilClose collects line frames until the server closes the stream.
func readUntilClose(t *testing.T, conn *websocket.Conn) ([]string, int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	var lines []string
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			return lines, closeErr.Code
		}
		lines = append(lines, stream.DecodeFrame(payload))
	}
}

func TestServer_Health(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin(AllTargets)
	hub.Publish(AllTargets, "a")
	hub.Publish(AllTargets, "b")
	_, ts := newTestServer(t, hub)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, constants.ContentTypeJSON, resp.Header.Get(constants.ContentTypeHeader))
	assert.NotEmpty(t, resp.Header.Get(constants.RequestIDHeader))

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, *constants.GetVersion(), health.Version)
	assert.Equal(t, uint64(2), health.Lines)
	assert.Equal(t, 0, health.Subscribers)
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	_, ts := newTestServer(t, newTestHub(1))

	req, err := http.NewRequestWithContext(testutil.TestContext(), http.MethodGet, ts.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set(constants.RequestIDHeader, "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "req-123", resp.Header.Get(constants.RequestIDHeader))
}

func TestServer_NotFound(t *testing.T) {
	_, ts := newTestServer(t, newTestHub(1))

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not found", body.Error)
	assert.Equal(t, "/nope", body.Details)
}

func TestServer_StreamByPath(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-1")
	hub.Begin("job-2")
	hub.Publish("job-1", "x1")
	hub.Publish("job-2", "y1")
	hub.End("job-1")
	_, ts := newTestServer(t, hub)

	conn := dial(t, wsURL(ts, "/ws/logs/job-1"))
	lines, code := readUntilClose(t, conn)

	assert.Equal(t, []string{"x1"}, lines)
	assert.Equal(t, websocket.CloseNormalClosure, code)
}

func TestServer_StreamBySubscribeFrame(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-1")
	hub.Begin("job-2")
	hub.Publish("job-1", "x1")
	hub.Publish("job-2", "y1")
	hub.End("job-2")
	_, ts := newTestServer(t, hub)

	conn := dial(t, wsURL(ts, "/ws/logs"))
	require.NoError(t, conn.WriteJSON(api.NewSubscribeMessage("job-2")))

	lines, code := readUntilClose(t, conn)
	assert.Equal(t, []string{"y1"}, lines)
	assert.Equal(t, websocket.CloseNormalClosure, code)
}

func TestServer_StreamAllWithoutSubscribe(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-1")
	hub.Begin("job-2")
	hub.Publish("job-1", "x1")
	hub.Publish("job-2", "y1")
	_, ts := newTestServer(t, hub)

	conn := dial(t, wsURL(ts, "/ws/logs"))
	require.Eventually(t, func() bool {
		subscribers, _ := hub.Stats()
		return subscribers == 1
	}, waitFor, waitTick)

	hub.Publish("job-1", "x2")
	hub.End("job-1")
	hub.End("job-2")

	lines, code := readUntilClose(t, conn)
	assert.Equal(t, []string{"x1", "y1", "x2"}, lines)
	assert.Equal(t, websocket.CloseNormalClosure, code)
}

func TestServer_ViewerLeaving(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-1")
	_, ts := newTestServer(t, hub)

	conn := dial(t, wsURL(ts, "/ws/logs/job-1"))
	require.Eventually(t, func() bool {
		subscribers, _ := hub.Stats()
		return subscribers == 1
	}, waitFor, waitTick)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		subscribers, _ := hub.Stats()
		return subscribers == 0
	}, waitFor, waitTick)
}

func TestServer_ServeShutsDownSubscribers(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-1")
	s := NewServer(hub, testutil.SilentLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn := dial(t, "ws://"+ln.Addr().String()+"/ws/logs/job-1")
	require.Eventually(t, func() bool {
		subscribers, _ := hub.Stats()
		return subscribers == 1
	}, waitFor, waitTick)

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(constants.ServerShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "stream is closed after shutdown")
}

func TestServer_FeedsViewer(t *testing.T) {
	hub := newTestHub(10)
	hub.Begin("job-7")
	hub.Publish("job-7", "epoch 1 loss=0.9")
	hub.Publish("job-8", "other job")
	_, ts := newTestServer(t, hub)

	clock := testutil.NewFakeClock(testutil.FixedTime)
	viewer := stream.NewViewer(stream.Options{
		URL:      wsURL(ts, "/ws/logs"),
		TargetID: "job-7",
		Clock:    clock,
		Logger:   testutil.SilentLogger(),
	})
	t.Cleanup(viewer.Teardown)
	viewer.Start()

	require.Eventually(t, func() bool { return len(viewer.Entries()) == 1 }, waitFor, waitTick)
	hub.Publish("job-7", "epoch 2 loss=0.7")
	require.Eventually(t, func() bool { return len(viewer.Entries()) == 2 }, waitFor, waitTick)
	assert.Equal(t, []string{"epoch 1 loss=0.9", "epoch 2 loss=0.7"}, testutil.Texts(viewer.Entries()))

	hub.End("job-7")
	require.Eventually(t, func() bool {
		return viewer.State() == stream.Disconnected && len(clock.Pending()) == 1
	}, waitFor, waitTick, "source end closes the viewer normally and a reconnect is scheduled")
}
