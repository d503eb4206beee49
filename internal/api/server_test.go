package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/courier-world/internal/engine"
	"github.com/talgya/courier-world/internal/persistence"
)

func testServer(t *testing.T, ratePerMin int) (*Server, *httptest.Server) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "courier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := NewServer(&engine.Published{}, db, "", ratePerMin)
	go srv.hub.Run()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestStateEndpoint(t *testing.T) {
	srv, ts := testServer(t, 0)
	srv.State.Publish(engine.View{
		ID:      "run-7",
		Tick:    42,
		Money:   180.5,
		Goal:    3000,
		Outcome: "open",
		Weather: "rain",
	}, nil)

	var v engine.View
	resp := getJSON(t, ts.URL+"/state", &v)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "run-7", v.ID)
	assert.Equal(t, uint64(42), v.Tick)
	assert.Equal(t, 180.5, v.Money)
	assert.Equal(t, "rain", v.Weather)
}

func TestScoresEndpoint(t *testing.T) {
	srv, ts := testServer(t, 0)
	require.NoError(t, srv.DB.AddScore(engine.Score{Session: "a", Score: 120, Outcome: "timeout"}))
	require.NoError(t, srv.DB.AddScore(engine.Score{Session: "b", Score: 260, Outcome: "won"}))

	var scores []engine.Score
	getJSON(t, ts.URL+"/scores?limit=1", &scores)
	require.Len(t, scores, 1)
	assert.Equal(t, "b", scores[0].Session, "best run first")
	assert.Equal(t, 260.0, scores[0].Score)
}

func TestScoresEmptyBoard(t *testing.T) {
	_, ts := testServer(t, 0)

	resp, err := http.Get(ts.URL + "/scores")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var scores []engine.Score
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scores))
	assert.NotNil(t, scores, "empty board encodes as [], not null")
	assert.Empty(t, scores)
}

func TestEventsWindow(t *testing.T) {
	srv, ts := testServer(t, 0)
	srv.State.Publish(engine.View{}, []engine.Event{
		{Tick: 1, Category: "session", Description: "session started"},
		{Tick: 2, Category: "weather", Description: "weather shifted to rain"},
		{Tick: 3, Category: "job", Description: "picked up PKG-001"},
		{Tick: 4, Category: "job", Description: "delivered PKG-001"},
		{Tick: 5, Category: "courier", Description: "courier exhausted"},
	})

	var events []engine.Event
	getJSON(t, ts.URL+"/events?limit=2", &events)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(4), events[0].Tick, "newest window, oldest first")
	assert.Equal(t, uint64(5), events[1].Tick)
}

func TestHealthz(t *testing.T) {
	srv, ts := testServer(t, 0)
	srv.State.Publish(engine.View{ID: "run-9", Tick: 11, Outcome: "open"}, nil)

	var body map[string]any
	resp := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-9", body["session"])
	assert.Equal(t, "open", body["outcome"])
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := testServer(t, 0)

	resp, err := http.Post(ts.URL+"/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRateLimitExceeded(t *testing.T) {
	_, ts := testServer(t, 2)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/state")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHealthzNotRateLimited(t *testing.T) {
	_, ts := testServer(t, 1)

	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "health probes bypass the limiter")
	}
}

func TestStreamBroadcast(t *testing.T) {
	srv, ts := testServer(t, 0)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond, "subscription registers before the first broadcast")

	srv.Broadcast([]engine.Event{
		{Tick: 7, Elapsed: 0.7, Category: "job", Description: "delivered PKG-001"},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string       `json:"type"`
		Payload engine.Event `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, uint64(7), msg.Payload.Tick)
	assert.Equal(t, "delivered PKG-001", msg.Payload.Description)
}

func TestStreamUnsubscribeOnClose(t *testing.T) {
	srv, ts := testServer(t, 0)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	require.Eventually(t, func() bool { return srv.hub.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return srv.hub.Subscribers() == 0 },
		2*time.Second, 10*time.Millisecond, "closed peers leave the subscriber set")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/state", nil)
	r.RemoteAddr = "203.0.113.9:51423"
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.4, 203.0.113.9")
	assert.Equal(t, "198.51.100.4", clientIP(r), "first hop of the forwarded chain wins")
}

func TestLimitParam(t *testing.T) {
	for query, want := range map[string]int{
		"":           50,
		"limit=5":    5,
		"limit=0":    50,
		"limit=-3":   50,
		"limit=9999": 50,
		"limit=abc":  50,
	} {
		r := httptest.NewRequest(http.MethodGet, "/events?"+query, nil)
		assert.Equal(t, want, limitParam(r, 50, 500), query)
	}
}
