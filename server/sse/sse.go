// Package sse serves a user's event stream over Server-Sent Events. Each
// event is framed with its stream id so clients resume with since_id after
// a reconnect.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/server/bridge"
)

// Handler serves GET /user-events/stream/{user_id}/events.
type Handler struct {
	stream events.Stream
	secret []byte
	logger zerolog.Logger
}

// NewHandler creates an SSE handler over the given stream, verifying
// tokens with the given HMAC secret.
func NewHandler(stream events.Stream, secret []byte, logger zerolog.Logger) *Handler {
	return &Handler{
		stream: stream,
		secret: secret,
		logger: logger.With().Str("component", "sse_bridge").Logger(),
	}
}

var _ http.Handler = (*Handler)(nil)

func (handler *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	userID := request.PathValue("user_id")
	if userID == "" {
		http.Error(writer, "missing user id", http.StatusBadRequest)
		return
	}

	if err := bridge.Authorize(extractToken(request), userID, handler.secret); err != nil {
		handler.logger.Warn().Err(err).Str("user_id", userID).Msg("stream access denied")
		http.Error(writer, "forbidden", http.StatusForbidden)
		return
	}

	flusher, canFlush := writer.(http.Flusher)
	if !canFlush {
		http.Error(writer, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	deliver := func(entry events.Entry) error {
		if _, err := fmt.Fprintf(writer, "id: %s\ndata: %s\n\n", entry.ID, userEventFrame(entry)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	onError := func(err error) {
		frame, _ := json.Marshal(map[string]string{"event": "ERROR", "error": err.Error()})
		_, _ = fmt.Fprintf(writer, "data: %s\n\n", frame)
		flusher.Flush()
	}

	err := bridge.Follow(request.Context(), handler.stream, handler.logger, userID, request.URL.Query().Get("since_id"), deliver, onError)
	handler.logger.Debug().Err(err).Str("user_id", userID).Msg("sse stream closed")
}

// userEventFrame wraps a stored event in the USER_EVENT envelope clients
// parse: the event's own fields plus the stream id to resume from. A
// payload that is not a JSON object is carried under "data" so a bad
// entry never kills the connection.
func userEventFrame(entry events.Entry) []byte {
	fields := make(map[string]any)
	if err := json.Unmarshal(entry.Payload, &fields); err != nil {
		fields = map[string]any{"data": string(entry.Payload)}
	}
	fields["event"] = "USER_EVENT"
	fields["id"] = entry.ID
	frame, _ := json.Marshal(fields)
	return frame
}

// extractToken reads the token from the query string or a bearer header.
func extractToken(request *http.Request) string {
	if token := request.URL.Query().Get("token"); token != "" {
		return token
	}
	authorization := request.Header.Get("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimPrefix(authorization, "Bearer ")
	}
	return ""
}
