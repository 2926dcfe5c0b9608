package nodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchOutputs(t *testing.T, result any) map[string]any {
	t.Helper()
	outputs, isMap := result.(map[string]any)
	require.True(t, isMap)
	return outputs
}

func TestWebFetchConvertsHTMLToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/html")
		_, _ = writer.Write([]byte("<html><body><h1>Title</h1><p>Some <strong>bold</strong> text.</p></body></html>"))
	}))
	defer server.Close()

	result, err := (&WebFetch{}).Process(context.Background(),
		map[string]any{"url": server.URL},
		map[string]any{})
	require.NoError(t, err)

	outputs := fetchOutputs(t, result)
	content, _ := outputs["content"].(string)
	assert.Contains(t, content, "# Title")
	assert.Contains(t, content, "**bold**")
	assert.Equal(t, server.URL, outputs["url"])
}

func TestWebFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(writer http.ResponseWriter, request *http.Request) {
		http.Redirect(writer, request, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte("<p>landed</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := (&WebFetch{}).Process(context.Background(),
		map[string]any{"url": server.URL + "/start"},
		map[string]any{})
	require.NoError(t, err)

	outputs := fetchOutputs(t, result)
	assert.Equal(t, server.URL+"/final", outputs["url"])
	assert.Contains(t, outputs["content"], "landed")
}

func TestWebFetchRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := (&WebFetch{}).Process(context.Background(),
		map[string]any{"url": server.URL},
		map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code")
}

func TestWebFetchRequiresURL(t *testing.T) {
	_, err := (&WebFetch{}).Process(context.Background(),
		map[string]any{"url": "  "},
		map[string]any{})
	assert.Error(t, err)
}

func TestWebFetchSendsUserAgent(t *testing.T) {
	var seenAgent string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seenAgent = request.Header.Get("User-Agent")
		_, _ = writer.Write([]byte("<p>ok</p>"))
	}))
	defer server.Close()

	_, err := (&WebFetch{}).Process(context.Background(),
		map[string]any{"url": server.URL},
		map[string]any{"user_agent": "custom-agent/2.0"})
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/2.0", seenAgent)
}

func TestWebFetchToolRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte("<p>tool content</p>"))
	}))
	defer server.Close()

	fetch := &WebFetch{}

	descriptor, err := fetch.BuildTool(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "web_fetch", descriptor.Name)

	// Tool arguments override the node's own inputs.
	result, err := fetch.ProcessTool(context.Background(),
		map[string]any{"url": "ignored.example"},
		map[string]any{},
		map[string]any{"url": server.URL})
	require.NoError(t, err)
	assert.Contains(t, fetchOutputs(t, result)["content"], "tool content")
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 3.0, toFloat(3))
	assert.Equal(t, 3.0, toFloat(int64(3)))
	assert.Equal(t, 1.5, toFloat(1.5))
	assert.Equal(t, 0.0, toFloat("nope"))
	assert.Equal(t, 0.0, toFloat(nil))
}
