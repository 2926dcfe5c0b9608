// Package ws serves a user's event stream over a WebSocket connection,
// sharing the SSE bridge's auth and follow loop. Each stream entry becomes
// one text message carrying the cursor id and the event payload.
package ws

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/events"
	"github.com/flowgrid/flowgrid/server/bridge"
)

// Message is the wire shape of one delivered event.
type Message struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// Handler serves GET /user-events/stream/{user_id}/ws.
type Handler struct {
	stream   events.Stream
	secret   []byte
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler over the given stream, verifying
// tokens with the given HMAC secret.
func NewHandler(stream events.Stream, secret []byte, logger zerolog.Logger) *Handler {
	return &Handler{
		stream: stream,
		secret: secret,
		logger: logger.With().Str("component", "ws_bridge").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
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

	connection, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		handler.logger.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = connection.Close() }()

	deliver := func(entry events.Entry) error {
		message, err := json.Marshal(Message{ID: entry.ID, Event: entry.Payload})
		if err != nil {
			return err
		}
		return connection.WriteMessage(websocket.TextMessage, message)
	}
	onError := func(err error) {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		_ = connection.WriteMessage(websocket.TextMessage, payload)
	}

	err = bridge.Follow(request.Context(), handler.stream, handler.logger, userID, request.URL.Query().Get("since_id"), deliver, onError)
	handler.logger.Debug().Err(err).Str("user_id", userID).Msg("websocket stream closed")
}

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
