package nodes

import (
	"fmt"

	"github.com/flowgrid/flowgrid/core/node"
	"github.com/flowgrid/flowgrid/core/parse"
)

// Builtin type names. Graph node records reference these in their type tag.
const (
	TypeChatInput  = "chat-input"
	TypeChatOutput = "chat-output"
	TypeIdentity   = "identity"
	TypeTemplate   = "template"
	TypeCondition  = "condition"
	TypeRouter     = "router"
	TypeLLM        = "llm"
	TypeWebFetch   = "webfetch"
)

// Builtin returns a registry populated with every builtin node type.
func Builtin() *node.Registry {
	registry := node.NewRegistry()
	registry.MustRegister(TypeChatInput, func() node.Node { return &ChatInput{} })
	registry.MustRegister(TypeChatOutput, func() node.Node { return &ChatOutput{} })
	registry.MustRegister(TypeIdentity, func() node.Node { return &Identity{} })
	registry.MustRegister(TypeTemplate, func() node.Node { return &Template{} })
	registry.MustRegister(TypeCondition, func() node.Node { return &Condition{} })
	registry.MustRegister(TypeRouter, func() node.Node { return &Router{} })
	registry.MustRegister(TypeLLM, func() node.Node { return &LLM{} })
	registry.MustRegister(TypeWebFetch, func() node.Node { return &WebFetch{} })
	return registry
}

// stringify renders any value as text for template substitution and text
// outputs. Structured values are compact JSON.
func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case map[string]any, []any:
		if encoded, err := parse.CompactJSON(typed); err == nil {
			return encoded
		}
	}
	return fmt.Sprintf("%v", value)
}
