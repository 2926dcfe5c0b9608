package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/flow"
	"github.com/flowgrid/flowgrid/core/plan"
	"github.com/flowgrid/flowgrid/core/run"
	"github.com/flowgrid/flowgrid/dispatch"
	"github.com/flowgrid/flowgrid/server/bridge"
)

// maxRequestBody caps graph request bodies at 4MB.
const maxRequestBody = 4 * 1024 * 1024

// api holds the HTTP handlers over the dispatcher.
type api struct {
	dispatcher *dispatch.Dispatcher
	secret     []byte
	logger     zerolog.Logger
}

func newAPI(dispatcher *dispatch.Dispatcher, secret []byte, logger zerolog.Logger) *api {
	return &api{
		dispatcher: dispatcher,
		secret:     secret,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// handleCompile returns the plan preview for a raw graph request.
func (api *api) handleCompile(writer http.ResponseWriter, request *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(request.Body, maxRequestBody))
	if err != nil {
		http.Error(writer, "failed to read body", http.StatusBadRequest)
		return
	}

	result, err := api.dispatcher.CompileFlow(request.PathValue("flow_id"), raw)
	if err != nil {
		api.writeError(writer, err)
		return
	}
	api.writeJSON(writer, http.StatusOK, result)
}

// handleRun executes a raw graph request for the authenticated user.
func (api *api) handleRun(writer http.ResponseWriter, request *http.Request) {
	userID, ok := api.authenticate(writer, request)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(request.Body, maxRequestBody))
	if err != nil {
		http.Error(writer, "failed to read body", http.StatusBadRequest)
		return
	}

	control, err := controlFromQuery(request)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := api.dispatcher.RunFlow(request.Context(), userID, request.PathValue("flow_id"), raw, control)
	if err != nil {
		api.writeError(writer, err)
		return
	}
	api.writeJSON(writer, http.StatusOK, result)
}

// runTestRequest is the body of a test-case run dispatch.
type runTestRequest struct {
	TaskID string          `json:"task_id"`
	CaseID string          `json:"case_id"`
	Graph  json.RawMessage `json:"graph"`
}

// handleRunTest dispatches an admission-controlled test-case run. A full
// user rejection answers 429 with the retry delay instead of blocking.
func (api *api) handleRunTest(writer http.ResponseWriter, request *http.Request) {
	userID, ok := api.authenticate(writer, request)
	if !ok {
		return
	}

	var body runTestRequest
	if err := json.NewDecoder(io.LimitReader(request.Body, maxRequestBody)).Decode(&body); err != nil {
		http.Error(writer, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" || len(body.Graph) == 0 {
		http.Error(writer, "task_id and graph are required", http.StatusBadRequest)
		return
	}

	control, err := controlFromQuery(request)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	retry, result, err := api.dispatcher.DispatchRunTest(request.Context(), body.TaskID, userID, request.PathValue("flow_id"), body.CaseID, body.Graph, control)
	if err != nil {
		api.writeError(writer, err)
		return
	}
	if retry != nil {
		writer.Header().Set("Retry-After", retry.After.String())
		api.writeJSON(writer, http.StatusTooManyRequests, map[string]any{
			"retry_after_seconds": retry.After.Seconds(),
		})
		return
	}
	if result == nil {
		api.writeJSON(writer, http.StatusOK, map[string]any{"skipped": true})
		return
	}
	api.writeJSON(writer, http.StatusOK, result)
}

// authenticate resolves the caller's user id from the bearer token.
func (api *api) authenticate(writer http.ResponseWriter, request *http.Request) (string, bool) {
	token := request.URL.Query().Get("token")
	if token == "" {
		authorization := request.Header.Get("Authorization")
		token = strings.TrimPrefix(authorization, "Bearer ")
	}

	userID, err := bridge.Subject(token, api.secret)
	if err != nil {
		api.logger.Warn().Err(err).Msg("authentication failed")
		http.Error(writer, "forbidden", http.StatusForbidden)
		return "", false
	}
	return userID, true
}

func controlFromQuery(request *http.Request) (run.Control, error) {
	scope := request.URL.Query().Get("scope")
	startNode := request.URL.Query().Get("start_node")

	switch run.Scope(scope) {
	case "", run.ScopeFull:
		return run.FullControl(), nil
	case run.ScopeFromNode, run.ScopeNodeOnly:
		if startNode == "" {
			return run.Control{}, errors.New("start_node is required for partial runs")
		}
		return run.Control{Scope: run.Scope(scope), StartNode: startNode}, nil
	default:
		return run.Control{}, errors.New("unknown scope " + scope)
	}
}

func (api *api) writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		api.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps engine errors onto HTTP statuses: structural problems in
// the request are 400s, everything else is a 500.
func (api *api) writeError(writer http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, plan.ErrEmptyGraph),
		errors.Is(err, plan.ErrNotADAG),
		errors.Is(err, flow.ErrInvalidRequest),
		errors.Is(err, flow.ErrInvalidEdge),
		errors.Is(err, run.ErrStartNodeNotFound):
		status = http.StatusBadRequest
	}
	api.writeJSON(writer, status, map[string]string{"error": err.Error()})
}
