package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixel-ai/brixel-client/internal/server"
	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*server.Server, *publish.Collector) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.RegisterAgent(api.AgentSpec{
		ID:          "writer",
		Name:        "Writer",
		Description: "Produces text",
	}))
	require.NoError(t, reg.Register(api.TaskSpec{
		Name:        "shout",
		Description: "Uppercases text",
		AgentID:     "writer",
		Configuration: api.TaskConfig{
			Inputs: []api.InputSpec{
				{Name: "text", Type: "string", Required: true},
			},
		},
	}, func(args api.Args) (any, error) {
		return strings.ToUpper(args.GetString("text", "")) + "!", nil
	}))

	col := publish.NewCollector()
	return server.NewServer(reg, "writer", col), col
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(
		http.MethodPost, path, bytes.NewReader(data),
	)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "writer", body["agent"])
	assert.Equal(t, float64(1), body["tasks"])
}

func TestConfiguration(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetOptions(map[string]any{"version": "1"})
	router := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/configuration", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var cfg api.AgentConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, api.AgentID("writer"), cfg.ID)
	assert.Equal(t, "Writer", cfg.Name)
	assert.Equal(t, "Produces text", cfg.Description)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, "shout", cfg.Tasks[0].Name)
	assert.Equal(t, map[string]any{"version": "1"}, cfg.Options)
}

func TestExecute(t *testing.T) {
	srv, col := newTestServer(t)
	router := srv.SetupRoutes()

	w := postJSON(router, "/execute", map[string]any{
		"id": "sp-1",
		"plan": []map[string]any{
			{
				"name":    "shout",
				"inputs":  map[string]any{"text": "'hello'"},
				"output":  "greeting",
				"index":   0,
				"options": map[string]any{"display_output": true},
			},
			{
				"name":   "_return",
				"inputs": map[string]any{"value": "greeting"},
				"index":  1,
			},
		},
		"inputs": map[string]any{},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "HELLO!", body["output"])

	displayed, ok := body["displayed_outputs"].([]any)
	require.True(t, ok)
	require.Len(t, displayed, 1)
	first := displayed[0].(map[string]any)
	assert.Equal(t, "HELLO!", first["output"])
	assert.Equal(t, float64(0), first["index"])

	names := make([]api.EventName, 0)
	for _, ev := range col.Events() {
		assert.Equal(t, api.SubPlanID("sp-1"), ev.PlanID)
		names = append(names, ev.Event)
	}
	assert.Equal(t, []api.EventName{
		api.EventSubPlanStart,
		api.EventNodeStart, api.EventNodeFinish,
		api.EventNodeStart, api.EventNodeFinish,
		api.EventSubPlanDone,
		api.EventDone,
	}, names)

	done := col.Named(api.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, "success", done[0].Details["finish_reason"])
	assert.Equal(t, "HELLO!", done[0].Details["output"])
	assert.Contains(t, done[0].Details, "execution_time")

	subDone := col.Named(api.EventSubPlanDone)
	require.Len(t, subDone, 1)
	assert.Equal(t, api.SubPlanID("sp-1"), subDone[0].Details["plan_id"])
}

func TestExecuteFailure(t *testing.T) {
	srv, col := newTestServer(t)
	router := srv.SetupRoutes()

	w := postJSON(router, "/execute", map[string]any{
		"id": "sp-2",
		"plan": []map[string]any{
			{"name": "no_such_task", "index": 0},
		},
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "error")
	errText := body["error"].(string)
	assert.NotEmpty(t, errText)

	names := make([]api.EventName, 0)
	for _, ev := range col.Events() {
		names = append(names, ev.Event)
	}
	assert.Equal(t, []api.EventName{
		api.EventSubPlanStart,
		api.EventNodeStart,
		api.EventError,
		api.EventExecutionInterrupted,
	}, names)

	interrupted := col.Named(api.EventExecutionInterrupted)
	require.Len(t, interrupted, 1)
	reason, ok := interrupted[0].Details["reason"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, errText, reason["error"])
}

func TestExecuteBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	req := httptest.NewRequest(
		http.MethodPost, "/execute", strings.NewReader("{not json"),
	)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteInvalidNode(t *testing.T) {
	srv, col := newTestServer(t)
	router := srv.SetupRoutes()

	w := postJSON(router, "/execute", map[string]any{
		"id": "sp-3",
		"plan": []map[string]any{
			{"name": "_assign", "index": 0},
		},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, col.Events())
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/execute", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.SetupRoutes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	srv.Publisher().Publish(
		"sp-ws", api.EventNodeStart,
		&api.Node{Name: "shout", Index: 3},
		map[string]any{"task": "shout"},
	)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev api.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, api.SubPlanID("sp-ws"), ev.PlanID)
	assert.Equal(t, api.EventNodeStart, ev.Event)
	require.NotNil(t, ev.NodeIndex)
	assert.Equal(t, 3, *ev.NodeIndex)
	assert.Equal(t, "shout", ev.NodeName)

	srv.CloseWebSockets()
}

func TestWebSocketExecuteBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.SetupRoutes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	body, _ := json.Marshal(map[string]any{
		"id": "sp-4",
		"plan": []map[string]any{
			{
				"name":   "_return",
				"inputs": map[string]any{"value": "42"},
				"index":  0,
			},
		},
	})
	res, err := http.Post(
		ts.URL+"/execute", "application/json", bytes.NewReader(body),
	)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	names := make([]api.EventName, 0)
	for range 5 {
		var ev api.Event
		require.NoError(t, conn.ReadJSON(&ev))
		names = append(names, ev.Event)
	}
	assert.Equal(t, []api.EventName{
		api.EventSubPlanStart,
		api.EventNodeStart,
		api.EventNodeFinish,
		api.EventSubPlanDone,
		api.EventDone,
	}, names)

	srv.CloseWebSockets()
}
