package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/capability"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/discovery"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/dispatch"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/internal/metrics"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/reinforce"
	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

type env struct {
	store    *capability.MemoryStore
	selector *discovery.Selector
	engine   *reinforce.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := capability.NewMemoryStore(capability.NewIntentSet(nil), nil)
	return &env{
		store:    store,
		selector: discovery.NewSelector(store, discovery.DefaultConfig(), nil),
		engine:   reinforce.NewEngine(store, reinforce.DefaultConfig(), nil),
	}
}

func (e *env) seedAgent(t *testing.T, name, concept string, weight float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.UpsertAgent(ctx, &types.Agent{
		Name:      name,
		Endpoint:  "http://agents.local/" + name,
		Type:      types.AgentTypeFactBase,
		IntentMap: map[string]string{"define": "/query"},
	}))
	require.NoError(t, e.store.UpsertEdge(ctx, name, concept, "define", weight))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestWeightsHandler_Reinforce(t *testing.T) {
	e := newEnv(t)
	e.seedAgent(t, "lightbulb_definition", "lightbulb", 0.5)
	h := NewWeightsHandler(e.engine, nil, nil, nil)

	rec := postJSON(t, h.HandleReinforce, "/v1/weights/reinforce",
		`{"agent_name":"lightbulb_definition","concept":"lightbulb","intent":"define","success":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.InDelta(t, 0.55, data["weight"].(float64), 1e-9)
}

func TestWeightsHandler_ReinforceUnknownAgent(t *testing.T) {
	h := NewWeightsHandler(newEnv(t).engine, nil, nil, nil)

	rec := postJSON(t, h.HandleReinforce, "/v1/weights/reinforce",
		`{"agent_name":"ghost","concept":"lightbulb","intent":"define","success":true}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestWeightsHandler_ReinforceMissingFields(t *testing.T) {
	h := NewWeightsHandler(newEnv(t).engine, nil, nil, nil)

	rec := postJSON(t, h.HandleReinforce, "/v1/weights/reinforce", `{"concept":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeightsHandler_Decay(t *testing.T) {
	e := newEnv(t)
	e.seedAgent(t, "lightbulb_definition", "lightbulb", 0.8)
	h := NewWeightsHandler(e.engine, nil, nil, nil)

	rec := postJSON(t, h.HandleDecay, "/v1/weights/decay",
		`{"concept":"lightbulb","rate":0.5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(1), data["edges_decayed"])

	w, err := e.store.GetWeight(context.Background(), "lightbulb_definition", "lightbulb", "define")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, w, 1e-9)
}

func TestWeightsHandler_DecayRecordsMetrics(t *testing.T) {
	e := newEnv(t)
	e.seedAgent(t, "lightbulb_definition", "lightbulb", 0.8)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("myriad", reg, nil)
	h := NewWeightsHandler(e.engine, nil, collector, nil)

	rec := postJSON(t, h.HandleDecay, "/v1/weights/decay",
		`{"concept":"lightbulb","rate":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			counts[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["myriad_decay_runs_total"])
	assert.Equal(t, 1.0, counts["myriad_decayed_edges_total"])
}

type stubTransferrer struct {
	created int
	err     error
}

func (s *stubTransferrer) Transfer(ctx context.Context, source, target string) (int, error) {
	return s.created, s.err
}

func TestWeightsHandler_Transfer(t *testing.T) {
	h := NewWeightsHandler(newEnv(t).engine, &stubTransferrer{created: 3}, nil, nil)

	rec := postJSON(t, h.HandleTransfer, "/v1/weights/transfer",
		`{"source_concept":"lightbulb","target_concept":"led lamp"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(3), data["edges_created"])
}

func TestWeightsHandler_TransferDisabled(t *testing.T) {
	h := NewWeightsHandler(newEnv(t).engine, nil, nil, nil)

	rec := postJSON(t, h.HandleTransfer, "/v1/weights/transfer",
		`{"source_concept":"a","target_concept":"b"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAgentsHandler_RegisterAndGet(t *testing.T) {
	e := newEnv(t)
	h := NewAgentsHandler(e.store, e.selector, nil)

	rec := postJSON(t, h.HandleRegister, "/v1/agents",
		`{"name":"lightbulb_definition","endpoint":"http://agents.local/lb","agent_type":"FactBase","intent_map":{"define":"/query"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agents/{name}", h.HandleGet)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/lightbulb_definition", nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	data := decodeResponse(t, getRec).Data.(map[string]any)
	assert.Equal(t, "lightbulb_definition", data["name"])
	assert.Equal(t, "FactBase", data["agent_type"])
}

func TestAgentsHandler_RegisterInvalid(t *testing.T) {
	e := newEnv(t)
	h := NewAgentsHandler(e.store, e.selector, nil)

	rec := postJSON(t, h.HandleRegister, "/v1/agents",
		`{"name":"nameless","agent_type":"FactBase"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentsHandler_GetUnknown(t *testing.T) {
	e := newEnv(t)
	h := NewAgentsHandler(e.store, e.selector, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agents/{name}", h.HandleGet)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/ghost", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentsHandler_List(t *testing.T) {
	e := newEnv(t)
	e.seedAgent(t, "a1", "lightbulb", 0.5)
	e.seedAgent(t, "a2", "factory", 0.5)
	h := NewAgentsHandler(e.store, e.selector, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	agents := decodeResponse(t, rec).Data.([]any)
	assert.Len(t, agents, 2)
}

func TestAgentsHandler_Select(t *testing.T) {
	e := newEnv(t)
	e.seedAgent(t, "lightbulb_definition", "lightbulb", 0.8)
	h := NewAgentsHandler(e.store, e.selector, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/select?concept=Lightbulb&intent=define", nil)
	rec := httptest.NewRecorder()
	h.HandleSelect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, false, data["miss"])
	assert.Equal(t, "lightbulb_definition", data["agent_name"])
	assert.InDelta(t, 0.8, data["best_weight"].(float64), 1e-9)
	assert.Equal(t, "lightbulb", data["concept"])
}

func TestAgentsHandler_SelectMiss(t *testing.T) {
	e := newEnv(t)
	h := NewAgentsHandler(e.store, e.selector, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/select?concept=unknown&intent=define", nil)
	rec := httptest.NewRecorder()
	h.HandleSelect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, true, data["miss"])
}

func TestAgentsHandler_SelectMissingParams(t *testing.T) {
	e := newEnv(t)
	h := NewAgentsHandler(e.store, e.selector, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/select?concept=lightbulb", nil)
	rec := httptest.NewRecorder()
	h.HandleSelect(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchHandler_Validation(t *testing.T) {
	e := newEnv(t)
	client := dispatch.NewClient(dispatch.DefaultClientConfig(), nil, nil)
	coordinator := dispatch.NewCoordinator(e.selector, client, e.engine, nil, nil, dispatch.DefaultConfig(), nil)
	h := NewDispatchHandler(coordinator, 2, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty batch", `{"tasks":[]}`, http.StatusBadRequest},
		{"garbage body", `{"tasks":`, http.StatusBadRequest},
		{"unknown field", `{"jobs":[]}`, http.StatusBadRequest},
		{"task missing intent", `{"tasks":[{"task_id":"t1","concept":"x"}]}`, http.StatusBadRequest},
		{"over the limit", `{"tasks":[{"task_id":"1","concept":"x","intent":"define"},{"task_id":"2","concept":"x","intent":"define"},{"task_id":"3","concept":"x","intent":"define"}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.HandleDispatch, "/v1/dispatch", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestDispatchHandler_Dispatch(t *testing.T) {
	e := newEnv(t)
	client := dispatch.NewClient(dispatch.DefaultClientConfig(), nil, nil)
	expander := dispatch.ExpanderFunc(func(ctx context.Context, concept, intent string) (*dispatch.Expansion, error) {
		return nil, types.NewError(types.ErrNeurogenesisFailed, "no sources")
	})
	coordinator := dispatch.NewCoordinator(e.selector, client, e.engine, expander, nil, dispatch.DefaultConfig(), nil)
	h := NewDispatchHandler(coordinator, 0, nil)

	rec := postJSON(t, h.HandleDispatch, "/v1/dispatch",
		`{"tasks":[{"task_id":"t1","concept":"unknown thing","intent":"define"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)
	results := resp.Data.(map[string]any)["results"].(map[string]any)
	require.Len(t, results, 1)
	r1 := results["t1"].(map[string]any)
	assert.Equal(t, "error", r1["status"])
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(nil)
	h.RegisterCheck(CheckFunc{CheckName: "store", Fn: func(ctx context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["store"].Status)
}

func TestHealthHandler_FailingCheck(t *testing.T) {
	h := NewHealthHandler(nil)
	h.RegisterCheck(CheckFunc{CheckName: "store", Fn: func(ctx context.Context) error {
		return errors.New("connection refused")
	}})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["store"].Status)
	assert.Contains(t, status.Checks["store"].Message, "connection refused")
}
