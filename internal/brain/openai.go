package brain

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starpy/songtutor/internal/config"
)

// OpenAIBrain implements Brain against the OpenAI chat completions API.
type OpenAIBrain struct {
	client      *openai.Client
	chatModel   string
	reviewModel string
	temperature float32
}

// NewOpenAIBrain creates a brain backed by the OpenAI API. cfg.BaseURL may
// point at any compatible endpoint, which the tests use.
func NewOpenAIBrain(cfg config.BrainConfig) (*OpenAIBrain, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brain api key is not configured")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIBrain{
		client:      openai.NewClientWithConfig(clientCfg),
		chatModel:   cfg.ChatModel,
		reviewModel: cfg.ReviewModel,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Chat runs one model turn, offering the given tools.
func (b *OpenAIBrain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       b.chatModel,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: b.temperature,
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	for _, spec := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	out := &ChatResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// Complete runs a plain system+user completion.
func (b *OpenAIBrain) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.chatModel,
		Temperature: b.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON runs a completion in JSON-object mode with the review model
// and unmarshals the single JSON object the model returns.
func (b *OpenAIBrain) CompleteJSON(ctx context.Context, system, user string, out any) error {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.reviewModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("structured completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("structured completion returned no choices")
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("failed to parse structured output: %w", err)
	}
	return nil
}

// Ping checks provider connectivity.
func (b *OpenAIBrain) Ping(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("model provider unreachable: %w", err)
	}
	return nil
}

// toOpenAIMessages converts loop messages to the provider wire format.
func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}
