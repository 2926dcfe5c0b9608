package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/core/admission"
	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/dispatch"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/storage"
)

var testSecret = []byte("api-test-secret")

const apiChatFlow = `{
	"nodes": [
		{"id": "in", "type": "chat-input", "data": {"input_values": {"text": "ping"}}},
		{"id": "out", "type": "chat-output", "data": {"label": "chat-output"}}
	],
	"edges": [
		{"id": "e1", "source": "in", "target": "out", "source_handle": "message", "target_handle": "message_in"}
	]
}`

type apiHarness struct {
	mux   *http.ServeMux
	slots *admission.MemorySlots
	runs  *storage.MemoryTestCaseRuns
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	slots := admission.NewMemorySlots(1)
	runs := storage.NewMemoryTestCaseRuns()

	dispatcher := dispatch.NewDispatcher(nodes.Builtin(), handle.NewAdapterRegistry(),
		events.NewMemoryStream(), slots, runs, zerolog.Nop(), dispatch.WithWorkers(2))
	api := newAPI(dispatcher, testSecret, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /flows/{flow_id}/compile", api.handleCompile)
	mux.HandleFunc("POST /flows/{flow_id}/run", api.handleRun)
	mux.HandleFunc("POST /flows/{flow_id}/run-test", api.handleRunTest)
	return &apiHarness{mux: mux, slots: slots, runs: runs}
}

func (harness *apiHarness) request(t *testing.T, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	harness.mux.ServeHTTP(recorder, request)
	return recorder
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func TestHandleCompile(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/compile", apiChatFlow, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		FlowID string     `json:"flow_id"`
		Layers [][]string `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "flow-1", result.FlowID)
	assert.Equal(t, [][]string{{"in"}, {"out"}}, result.Layers)
}

func TestHandleCompileInvalidGraph(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/compile", `{"nodes": "nope"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleRunRequiresAuth(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run", apiChatFlow, "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestHandleRun(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run", apiChatFlow, signToken(t, "alice"))
	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Success    bool `json:"success"`
		ChatOutput *struct {
			Content string `json:"content"`
		} `json:"chat_output"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.True(t, result.Success)
	require.NotNil(t, result.ChatOutput)
	assert.Equal(t, "ping", result.ChatOutput.Content)
}

func TestHandleRunRejectsPartialScopeWithoutStartNode(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run?scope=FROM_NODE", apiChatFlow, signToken(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleRunUnknownScope(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run?scope=SIDEWAYS", apiChatFlow, signToken(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func runTestBody(taskID string) string {
	return `{"task_id": "` + taskID + `", "case_id": "case-1", "graph": ` + apiChatFlow + `}`
}

func TestHandleRunTest(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run-test", runTestBody("task-1"), signToken(t, "alice"))
	require.Equal(t, http.StatusOK, recorder.Code)

	status, err := harness.runs.GetStatus(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, status)
}

func TestHandleRunTestAtCapacity(t *testing.T) {
	harness := newAPIHarness(t)

	granted, err := harness.slots.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, granted)

	recorder := harness.request(t, "/flows/flow-1/run-test", runTestBody("task-1"), signToken(t, "alice"))
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))

	var body struct {
		RetryAfterSeconds float64 `json:"retry_after_seconds"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Greater(t, body.RetryAfterSeconds, 0.0)
}

func TestHandleRunTestSkipsCancelled(t *testing.T) {
	harness := newAPIHarness(t)
	require.NoError(t, harness.runs.Create(context.Background(), &storage.TestCaseRun{
		ID: "task-1", UserID: "alice", FlowID: "flow-1", CaseID: "case-1",
		Status: storage.RunStatusCancelled,
	}))

	recorder := harness.request(t, "/flows/flow-1/run-test", runTestBody("task-1"), signToken(t, "alice"))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"skipped": true}`, recorder.Body.String())
}

func TestHandleRunTestRequiresTaskID(t *testing.T) {
	harness := newAPIHarness(t)

	recorder := harness.request(t, "/flows/flow-1/run-test",
		`{"case_id": "c", "graph": {}}`, signToken(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
