package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidewise/deckd/internal/adapters/auth"
	"github.com/slidewise/deckd/internal/adapters/llm"
	"github.com/slidewise/deckd/internal/adapters/store"
	"github.com/slidewise/deckd/internal/agent"
	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
	"github.com/slidewise/deckd/internal/service"
	"github.com/slidewise/deckd/internal/workflow"
)

func newTestServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	sessions := service.NewSessions(store.NewMemoryStore(), nil, logging.NewNop(), time.Hour)
	srv := NewServer(DefaultServerConfig(), newTestMachine(t), sessions, auth.Permissive{}, logging.NewNop(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestWebSocketConnectAck(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts, "?token=user-42")

	frame := readFrame(t, conn)
	assert.Equal(t, "connection", frame["type"])
	assert.Equal(t, "connected", frame["status"])
	assert.Equal(t, "user-42", frame["user_id"])
	assert.NotEmpty(t, frame["session_id"])
}

func TestWebSocketProtocolPing(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts, "")
	readFrame(t, conn) // connected ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"connection","status":"ping"}`)))

	frame := readFrame(t, conn)
	assert.Equal(t, "connection", frame["type"])
	assert.Equal(t, "pong", frame["status"])
}

func TestWebSocketGenerationRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts, "")
	readFrame(t, conn) // connected ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(detailedRequest)))

	// Acknowledgement chat first, then the finished presentation.
	ack := readFrame(t, conn)
	assert.Equal(t, "director_message", ack["type"])
	require.NotNil(t, ack["chat_data"])

	final := readFrame(t, conn)
	assert.Equal(t, "director_message", final["type"])
	assert.Equal(t, "director_outbound", final["source"])
	slideData, ok := final["slide_data"].(map[string]interface{})
	require.True(t, ok, "final frame should carry slide_data")
	slides, ok := slideData["slides"].([]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(slides), 5)
}

// A generation whose steps outlast the pong timeout must still deliver
// its frames: the handler goroutine keeps the read loop free to answer
// keepalives while the workflow runs.
func TestWebSocketSlowGenerationOutlivesPongTimeout(t *testing.T) {
	log := logging.NewNop()
	runner := &llm.MockRunner{Delay: 300 * time.Millisecond}
	machine := workflow.New(
		agent.NewAnalyzer(runner, log),
		agent.NewClarifier(runner, log, 3, 5),
		agent.NewBuilder(runner, &llm.MockEmbedder{}, nil, log, 5, 20),
		agent.NewContentAgents(),
		log,
		workflow.DefaultConfig(),
	)
	sessions := service.NewSessions(store.NewMemoryStore(), nil, log, time.Hour)
	cfg := DefaultServerConfig()
	cfg.PingInterval = 100 * time.Millisecond
	cfg.PongTimeout = 150 * time.Millisecond
	srv := NewServer(cfg, machine, sessions, auth.Permissive{}, log)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")
	readFrame(t, conn) // connected ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(detailedRequest)))

	ack := readFrame(t, conn)
	assert.Equal(t, "director_message", ack["type"])

	final := readFrame(t, conn)
	assert.Equal(t, "director_message", final["type"])
	require.NotNil(t, final["slide_data"], "slow run should still deliver the presentation")
}

func TestWebSocketMalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts, "")
	readFrame(t, conn) // connected ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))

	frame := readFrame(t, conn)
	assert.Equal(t, "system", frame["type"])
	assert.Equal(t, "error", frame["level"])
	assert.Equal(t, core.CodeMalformedMessage, frame["code"])

	// The connection still works after the rejected frame.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"connection","status":"ping"}`)))
	pong := readFrame(t, conn)
	assert.Equal(t, "pong", pong["status"])
}

func TestWebSocketSessionResume(t *testing.T) {
	ts := newTestServer(t)

	first := dialWS(t, ts, "?token=user-9")
	ack := readFrame(t, first)
	sessionID, _ := ack["session_id"].(string)
	require.NotEmpty(t, sessionID)
	first.Close()

	second := dialWS(t, ts, "?token=user-9&session_id="+sessionID)
	resumed := readFrame(t, second)
	assert.Equal(t, sessionID, resumed["session_id"])
}

func TestCloseSessionEndpoint(t *testing.T) {
	sessions := service.NewSessions(store.NewMemoryStore(), nil, logging.NewNop(), time.Hour)
	srv := NewServer(DefaultServerConfig(), newTestMachine(t), sessions, auth.Permissive{}, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "?token=user-7")
	ack := readFrame(t, conn)
	sessionID, _ := ack["session_id"].(string)
	require.NotEmpty(t, sessionID)
	conn.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions/"+sessionID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The closed session is gone; reconnecting with its id starts fresh.
	_, restored, err := sessions.Restore(context.Background(), sessionID, "user-7")
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestGetPresentationNotFound(t *testing.T) {
	ts := newTestServer(t, WithPresentationStore(store.NewMemoryStore()))

	resp, err := http.Get(ts.URL + "/api/v1/presentations/p-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetPresentationRoundTrip(t *testing.T) {
	mem := store.NewMemoryStore()
	p := &core.Presentation{
		PresentationID: "p-1",
		Title:          "Q3 Review",
		Slides: []core.Slide{
			{SlideID: "s-1", SlideNumber: 1, Title: "Q3 Review"},
		},
	}
	require.NoError(t, mem.SavePresentation(context.Background(), "sess-1", p))

	ts := newTestServer(t, WithPresentationStore(mem))

	resp, err := http.Get(ts.URL + "/api/v1/presentations/p-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got core.Presentation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Q3 Review", got.Title)
	assert.Len(t, got.Slides, 1)
}

func TestOriginRejected(t *testing.T) {
	sessions := service.NewSessions(store.NewMemoryStore(), nil, logging.NewNop(), time.Hour)
	cfg := DefaultServerConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	srv := NewServer(cfg, newTestMachine(t), sessions, auth.Permissive{}, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		conn.Close()
	}
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
