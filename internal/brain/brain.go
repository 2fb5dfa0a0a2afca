// Package brain defines the Brain interface and the language-model types the
// tutoring loop exchanges with it.
package brain

import (
	"context"
	"encoding/json"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Brain is the interface to the hosted language model.
type Brain interface {
	// Chat runs one model turn over the message list. The response carries
	// either final text or one or more tool calls.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Complete runs a plain system+user completion and returns the text.
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteJSON runs a completion constrained to a JSON object and
	// unmarshals the result into out.
	CompleteJSON(ctx context.Context, system, user string, out any) error

	// Ping checks provider connectivity.
	Ping(ctx context.Context) error
}

// ChatRequest contains all context for one model turn.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
}

// ChatResponse is the model's answer to a ChatRequest.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Message is one turn in the model conversation.
type Message struct {
	Role       Role
	Content    string
	Name       string     // tool name, for RoleTool messages
	ToolCallID string     // originating request id, for RoleTool messages
	ToolCalls  []ToolCall // requests emitted by an assistant turn
}

// ToolSpec describes an available tool for model function calling.
// Parameters holds a JSON-schema object and is marshalled as-is.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  any
}

// ToolCall is a model-issued request to execute a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}
