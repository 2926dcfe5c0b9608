package nodes

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

const llmDefaultModel = "gpt-4o-mini"

// LLM sends a prompt to an OpenAI-compatible chat completion endpoint and
// outputs the model's reply. The API key and base URL are parameters so a
// single flow can target different providers per node.
type LLM struct {
	// newClient allows tests to substitute the OpenAI client constructor.
	newClient func(config openai.ClientConfig) llmClient
}

// llmClient is the subset of the OpenAI client the node uses.
type llmClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ node.Node = (*LLM)(nil)

var llmSpec = &node.Spec{
	Name:        TypeLLM,
	Description: "Sends a prompt to an OpenAI-compatible chat model.",
	Inputs: []node.InputSpec{
		{
			Name:     "prompt",
			Handle:   handle.Text(),
			Required: true,
		},
		{
			Name:    "system",
			Handle:  handle.Text(),
			Default: "",
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "response", Handle: handle.Handle{Kind: handle.KindText}},
	},
	Params: []node.ParamSpec{
		{
			Name: "model",
			Handle: handle.Dropdown(
				handle.Option{Label: "GPT-4o", Value: "gpt-4o"},
				handle.Option{Label: "GPT-4o mini", Value: llmDefaultModel},
			),
			Default: llmDefaultModel,
		},
		{
			Name:    "temperature",
			Handle:  handle.Handle{Kind: handle.KindNumber, Min: 0, Max: 2},
			Default: 0.7,
		},
		{
			Name:        "api_key",
			Description: "Provider API key. Never logged or emitted in events.",
			Handle:      handle.Handle{Kind: handle.KindSecret},
		},
		{
			Name:        "base_url",
			Description: "Optional OpenAI-compatible endpoint override.",
			Handle:      handle.Handle{Kind: handle.KindText},
			Default:     "",
		},
	},
	Group: "ai",
	Tags:  []string{"llm", "openai"},
}

func (llm *LLM) Spec() *node.Spec { return llmSpec }

func (llm *LLM) Process(ctx context.Context, inputs, params map[string]any) (any, error) {
	prompt := stringify(inputs["prompt"])
	if prompt == "" {
		return nil, fmt.Errorf("prompt must not be empty")
	}

	apiKey := stringify(params["api_key"])
	if apiKey == "" {
		return nil, fmt.Errorf("api_key parameter is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := stringify(params["base_url"]); baseURL != "" {
		config.BaseURL = baseURL
	}

	model := stringify(params["model"])
	if model == "" {
		model = llmDefaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := stringify(inputs["system"]); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	client := llm.client(config)
	response, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(toFloat(params["temperature"])),
		Messages:    messages,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

func (llm *LLM) client(config openai.ClientConfig) llmClient {
	if llm.newClient != nil {
		return llm.newClient(config)
	}
	return openai.NewClientWithConfig(config)
}
