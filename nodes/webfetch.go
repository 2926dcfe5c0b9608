package nodes

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

const (
	// webFetchDefaultTimeout is the default HTTP request timeout.
	webFetchDefaultTimeout = 30 * time.Second
	// webFetchUserAgent is the default User-Agent header value.
	webFetchUserAgent = "flowgrid-webfetch/1.0"
	// webFetchMaxBodySize caps the response body at 10MB.
	webFetchMaxBodySize = 10 * 1024 * 1024
)

// WebFetch retrieves a web page and converts its HTML to Markdown. Partial
// URLs are normalized by prepending "https://"; up to ten redirects are
// followed and the final URL is exposed as a second output.
type WebFetch struct{}

var (
	_ node.Node     = (*WebFetch)(nil)
	_ node.ToolNode = (*WebFetch)(nil)
)

var webFetchSpec = &node.Spec{
	Name:        TypeWebFetch,
	Description: "Fetches a web page and converts its HTML content to Markdown.",
	Inputs: []node.InputSpec{
		{
			Name:     "url",
			Handle:   handle.Text(),
			Required: true,
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "content", Handle: handle.Handle{Kind: handle.KindText}},
		{Name: "url", Description: "Final URL after redirects.", Handle: handle.Handle{Kind: handle.KindText}},
	},
	Params: []node.ParamSpec{
		{
			Name:        "timeout_seconds",
			Description: "Request timeout in seconds.",
			Handle:      handle.Handle{Kind: handle.KindNumber, Min: 1, Max: 300},
			Default:     30,
		},
		{
			Name:    "user_agent",
			Handle:  handle.Handle{Kind: handle.KindText},
			Default: webFetchUserAgent,
		},
	},
	CanBeTool: true,
	Group:     "web",
	Tags:      []string{"http", "markdown"},
}

func (fetch *WebFetch) Spec() *node.Spec { return webFetchSpec }

func (fetch *WebFetch) Process(ctx context.Context, inputs, params map[string]any) (any, error) {
	url := strings.TrimSpace(stringify(inputs["url"]))
	if url == "" {
		return nil, fmt.Errorf("url must not be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	timeout := webFetchDefaultTimeout
	if seconds := toFloat(params["timeout_seconds"]); seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	userAgent := stringify(params["user_agent"])
	if userAgent == "" {
		userAgent = webFetchUserAgent
	}
	request.Header.Set("User-Agent", userAgent)

	response, err := webFetchClient(timeout).Do(request)
	if err != nil {
		if requestCtx.Err() != nil {
			return nil, fmt.Errorf("request timeout or canceled: %w", err)
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d %s", response.StatusCode, response.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(response.Body, webFetchMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(htmlBytes) == webFetchMaxBodySize {
		return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", webFetchMaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	return map[string]any{
		"content": markdown,
		"url":     response.Request.URL.String(),
	}, nil
}

// BuildTool exposes the node as a fetch tool to agent nodes.
func (fetch *WebFetch) BuildTool(_, _ map[string]any) (*node.ToolDescriptor, error) {
	return &node.ToolDescriptor{
		Name:        "web_fetch",
		Description: "Fetches a web page and returns its content as Markdown.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "The URL to fetch."},
			},
			"required": []string{"url"},
		},
	}, nil
}

// ProcessTool runs the fetch with the agent's arguments layered over the
// node's own inputs.
func (fetch *WebFetch) ProcessTool(ctx context.Context, inputs, params, toolInputs map[string]any) (any, error) {
	merged := make(map[string]any, len(inputs)+len(toolInputs))
	for key, value := range inputs {
		merged[key] = value
	}
	for key, value := range toolInputs {
		merged[key] = value
	}
	return fetch.Process(ctx, merged, params)
}

// webFetchClient builds an HTTP client with per-phase timeouts so slow
// servers cannot hold a node task indefinitely.
func webFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(request *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects (>10)")
			}
			return nil
		},
	}
}

// toFloat coerces numeric parameter values, which arrive as float64 from
// JSON but may be ints when set programmatically.
func toFloat(value any) float64 {
	switch typed := value.(type) {
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case float32:
		return float64(typed)
	case float64:
		return typed
	default:
		return 0
	}
}
