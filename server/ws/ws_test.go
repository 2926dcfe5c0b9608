package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/core/events"
)

var testSecret = []byte("ws-test-secret")

func signToken(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newServer(t *testing.T, stream events.Stream) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("GET /user-events/stream/{user_id}/ws", NewHandler(stream, testSecret, zerolog.Nop()))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestServeHTTPRejectsMissingToken(t *testing.T) {
	server := newServer(t, events.NewMemoryStream())

	//nolint:bodyclose
	_, response, err := websocket.DefaultDialer.Dial(wsURL(server, "/user-events/stream/alice/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
}

func TestServeHTTPRejectsForeignToken(t *testing.T) {
	server := newServer(t, events.NewMemoryStream())

	//nolint:bodyclose
	_, response, err := websocket.DefaultDialer.Dial(
		wsURL(server, "/user-events/stream/alice/ws?token="+signToken(t, "bob")), nil)
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
}

func TestServeHTTPDeliversMessages(t *testing.T) {
	stream := events.NewMemoryStream()
	ctx := context.Background()

	_, err := stream.Append(ctx, "alice", []byte(`{"type":"FLOW_STARTED"}`))
	require.NoError(t, err)
	_, err = stream.Append(ctx, "alice", []byte(`{"type":"FLOW_ENDED"}`))
	require.NoError(t, err)

	server := newServer(t, stream)
	connection, _, err := websocket.DefaultDialer.Dial(
		wsURL(server, "/user-events/stream/alice/ws?token="+signToken(t, "alice")), nil)
	require.NoError(t, err)
	defer func() { _ = connection.Close() }()

	require.NoError(t, connection.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first Message
	_, raw, err := connection.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, "1", first.ID)
	assert.JSONEq(t, `{"type":"FLOW_STARTED"}`, string(first.Event))

	var second Message
	_, raw, err = connection.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &second))
	assert.Equal(t, "2", second.ID)
}

func TestServeHTTPDeliversLiveAppends(t *testing.T) {
	stream := events.NewMemoryStream()
	server := newServer(t, stream)

	connection, _, err := websocket.DefaultDialer.Dial(
		wsURL(server, "/user-events/stream/alice/ws?token="+signToken(t, "alice")), nil)
	require.NoError(t, err)
	defer func() { _ = connection.Close() }()

	_, err = stream.Append(context.Background(), "alice", []byte(`"late"`))
	require.NoError(t, err)

	require.NoError(t, connection.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message Message
	_, raw, err := connection.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &message))
	assert.Equal(t, "1", message.ID)
}
