package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	arenahttp "github.com/aretw0/arena/pkg/adapters/http"
	"github.com/aretw0/arena/pkg/adapters/memory"
	"github.com/aretw0/arena/pkg/domain"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv         *httptest.Server
	registry    *hub.Registry
	transcripts *memory.TranscriptStore
	runs        *memory.Store
	launched    chan *domain.Run
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transcripts: memory.NewTranscriptStore(),
		runs:        memory.NewStore(),
		launched:    make(chan *domain.Run, 8),
	}
	f.registry = hub.NewRegistry(context.Background(), hub.WithTranscriptStore(f.transcripts))
	f.registry.SetLauncher(hub.LauncherFunc(func(ctx context.Context, run *domain.Run) error {
		f.launched <- run
		return nil
	}))

	handler, err := arenahttp.NewHandler(f.registry,
		arenahttp.WithTranscriptStore(f.transcripts),
		arenahttp.WithRunStore(f.runs),
	)
	require.NoError(t, err)

	f.srv = httptest.NewServer(handler)
	t.Cleanup(func() {
		f.srv.Close()
		f.registry.Shutdown()
	})
	return f
}

func (f *fixture) dial(t *testing.T, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/websocket"
	if room != "" {
		url += "?room=" + room
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func TestGetHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetInfo(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "arena-http", body["app"])
	assert.NotEmpty(t, body["version"])
	assert.Equal(t, "0.1.0", body["api_version"])
}

func TestWebSocket_HistoryThenExchange(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "r1")

	history := readFrame(t, ws)
	assert.Equal(t, "history", history["type"])
	assert.Empty(t, history["data"])

	// Malformed frames are dropped without closing the connection.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "start_exchange", "topic": "cats vs dogs"}))

	frame := readFrame(t, ws)
	assert.Equal(t, map[string]any{"sender": "User", "text": "cats vs dogs"}, frame)

	select {
	case run := <-f.launched:
		assert.Equal(t, "r1", run.SessionKey)
		assert.Equal(t, "cats vs dogs", run.Topic)
		require.Len(t, run.Context, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not launched")
	}
}

func TestWebSocket_DefaultRoom(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "")
	readFrame(t, ws)

	_, ok := f.registry.Lookup(hub.DefaultSessionKey)
	assert.True(t, ok)
}

func TestWebSocket_LateObserverGetsHistory(t *testing.T) {
	f := newFixture(t)
	client := arenahttp.NewClient(f.srv.URL)
	ctx := context.Background()

	require.NoError(t, client.PostResult(ctx, "r1", domain.Message(domain.SenderUser, "topic")))
	require.NoError(t, client.PostResult(ctx, "r1", domain.Message(domain.SenderAgentA, "for")))

	ws := f.dial(t, "r1")
	history := readFrame(t, ws)
	data, ok := history["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)
	assert.Equal(t, "for", data[1].(map[string]any)["text"])
}

func TestClient_PostResultFansOut(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "r1")
	readFrame(t, ws)

	client := arenahttp.NewClient(f.srv.URL)
	ctx := context.Background()

	require.NoError(t, client.PostResult(ctx, "r1", domain.Status(domain.SenderAgentA)))
	assert.Equal(t, map[string]any{"type": "status", "sender": "Agent A"}, readFrame(t, ws))

	require.NoError(t, client.PostResult(ctx, "r1", domain.Message(domain.SenderAgentA, "Cats!")))
	assert.Equal(t, map[string]any{"sender": "Agent A", "text": "Cats!"}, readFrame(t, ws))

	require.NoError(t, client.PostResult(ctx, "r1", domain.SystemNotice("Agent B could not respond: boom")))
	assert.Equal(t, map[string]any{"type": "system-notice", "sender": "System", "text": "Agent B could not respond: boom"}, readFrame(t, ws))

	stored, err := f.transcripts.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "status turns are not persisted")
}

func TestPostTurn_AcceptsTypingAlias(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, "r1")
	readFrame(t, ws)

	resp, err := http.Post(f.srv.URL+"/sessions/r1/turns", "application/json",
		strings.NewReader(`{"type":"typing","sender":"Agent B"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, map[string]any{"type": "status", "sender": "Agent B"}, readFrame(t, ws))
}

func TestPostTurn_Validation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]struct {
		path string
		body string
	}{
		"unknown field":   {"/sessions/r1/turns", `{"sender":"Agent A","text":"hi","extra":1}`},
		"unknown kind":    {"/sessions/r1/turns", `{"type":"shout","sender":"Agent A","text":"hi"}`},
		"missing sender":  {"/sessions/r1/turns", `{"text":"hi"}`},
		"not json":        {"/sessions/r1/turns", `hello`},
		"bad session key": {"/sessions/bad%20key/turns", `{"sender":"Agent A","text":"hi"}`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(f.srv.URL+tt.path, "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Stored but not loaded into a hub.
	require.NoError(t, f.transcripts.Append(ctx, "archived", domain.Message(domain.SenderUser, "old topic")))

	resp, err := http.Get(f.srv.URL + "/sessions/archived/transcript")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body arenahttp.TranscriptResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "archived", body.Session)
	require.Len(t, body.Turns, 1)
	assert.Equal(t, "old topic", body.Turns[0].Text)

	_, loaded := f.registry.Lookup("archived")
	assert.False(t, loaded, "reading a transcript does not start a hub")

	missing, err := http.Get(f.srv.URL + "/sessions/nobody/transcript")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.transcripts.Append(ctx, "stored", domain.Message(domain.SenderUser, "x")))
	_, err := f.registry.Get("live")
	require.NoError(t, err)

	resp, err := http.Get(f.srv.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"live", "stored"}, body["sessions"])
}

func TestGetRun(t *testing.T) {
	f := newFixture(t)
	run := domain.NewRun("run-1", "r1", "cats", nil)
	run.Complete(domain.StepSignalA, "")
	require.NoError(t, f.runs.Save(context.Background(), run))

	resp, err := http.Get(f.srv.URL + "/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "r1", got.SessionKey)
	assert.True(t, got.Completed(domain.StepSignalA))

	missing, err := http.Get(f.srv.URL + "/runs/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetOpenAPI(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))
}
