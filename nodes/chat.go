package nodes

import (
	"context"

	"github.com/flowgrid/flowgrid/core/handle"
	"github.com/flowgrid/flowgrid/core/node"
)

// ChatInput is the entry point of a conversational flow. Its text input is
// normally set in the UI; API-triggered runs may override it with a custom
// message, which the loader writes into the node's input values before
// execution.
type ChatInput struct{}

var _ node.Node = (*ChatInput)(nil)

var chatInputSpec = &node.Spec{
	Name:        TypeChatInput,
	Description: "Entry point carrying the user's message into the flow.",
	Inputs: []node.InputSpec{
		{
			Name:    "text",
			Handle:  handle.Handle{Kind: handle.KindText},
			Default: "",
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "message", Handle: handle.Handle{Kind: handle.KindText}},
	},
	Group: "chat",
}

func (chat *ChatInput) Spec() *node.Spec { return chatInputSpec }

func (chat *ChatInput) Process(_ context.Context, inputs, _ map[string]any) (any, error) {
	return stringify(inputs["text"]), nil
}

// ChatOutput is the terminal of a conversational flow. Whatever arrives on
// message_in becomes the run's chat output; the node itself just echoes the
// value so downstream inspection tools see it as a regular output.
type ChatOutput struct{}

var _ node.Node = (*ChatOutput)(nil)

var chatOutputSpec = &node.Spec{
	Name:        TypeChatOutput,
	Description: "Terminal node exposing the flow's reply to the user.",
	Inputs: []node.InputSpec{
		{
			Name:     "message_in",
			Handle:   handle.Handle{Kind: handle.KindDynamic, AllowIncomingEdges: true},
			Required: true,
		},
	},
	Outputs: []node.OutputSpec{
		{Name: "message", Handle: handle.Handle{Kind: handle.KindDynamic}},
	},
	Group: "chat",
}

func (chat *ChatOutput) Spec() *node.Spec { return chatOutputSpec }

func (chat *ChatOutput) Process(_ context.Context, inputs, _ map[string]any) (any, error) {
	return inputs["message_in"], nil
}
