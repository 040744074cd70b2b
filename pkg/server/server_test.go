package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/wire"
)

// dialTest opens a real socket against an httptest server.
func dialTest(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// readUntilClosed drains a socket to its close frame, reporting whether the
// disconnected farewell was seen on the way down.
func readUntilClosed(t *testing.T, ws *websocket.Conn) bool {
	t.Helper()
	sawFarewell := false
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
				"expected a normal closure, got %v", err)
			return sawFarewell
		}
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && m["type"] == "disconnected" {
			sawFarewell = true
		}
	}
}

func TestServeWSConnected(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws := dialTest(t, ts)
	m := readFrame(t, ws)
	require.Equal(t, "connected", m["type"])
	require.NotEmpty(t, m["sessionId"])

	ws2 := dialTest(t, ts)
	m2 := readFrame(t, ws2)
	require.NotEqual(t, m["sessionId"], m2["sessionId"], "session ids are per connection")
}

func TestIdentifyOverSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws := dialTest(t, ts)
	readFrame(t, ws) // connected

	require.NoError(t, ws.WriteJSON(wire.Identify{Type: wire.TypeIdentify, Name: "alice"}))
	m := readFrame(t, ws)
	require.Equal(t, "identified", m["type"])
	require.Equal(t, "alice", m["name"])
}

func TestHealthAndVersion(t *testing.T) {
	s := NewServer(game.NewRegistry(), Config{Version: "1.2.3"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK\n", string(body))

	resp, err = http.Get(ts.URL + "/version")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	resp.Body.Close()
	require.Equal(t, "1.2.3", v["version"])
}

func TestMalformedFramesDropSession(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws := dialTest(t, ts)
	readFrame(t, ws)

	for i := 0; i < maxMalformed; i++ {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	}
	require.True(t, readUntilClosed(t, ws), "farewell precedes the close")
}

func TestShutdownDrains(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ws := dialTest(t, ts)
	readFrame(t, ws)

	s.Shutdown()
	require.True(t, readUntilClosed(t, ws), "drain sends the farewell before closing")

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.sessions) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowClientEviction(t *testing.T) {
	s := newTestServer(t)
	c := connect(t, s)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.enqueue([]byte("{}")))
	}
	require.False(t, c.enqueue([]byte("{}")), "buffer must be full")

	s.reply(c, wire.RoomLeft{Type: wire.TypeRoomLeft})

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	require.True(t, closed, "a session that cannot drain its queue is evicted")
}

func TestConnShutSwallowsWrites(t *testing.T) {
	c := newClientConn("s1", nil)
	require.True(t, c.enqueue([]byte("a")))
	c.shut(websocket.CloseNormalClosure, "bye")
	require.True(t, c.enqueue([]byte("b")), "writes after close are swallowed")
	c.shut(websocket.CloseNormalClosure, "again") // idempotent

	require.Equal(t, []byte("a"), <-c.send)
	_, open := <-c.send
	require.False(t, open, "shut closes the queue after the backlog")
}
