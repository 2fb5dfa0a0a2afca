// Package agent runs the tutoring conversation loop: model turns
// interleaved with tool execution, bounded by a tool round budget.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starpy/songtutor/internal/brain"
	"github.com/starpy/songtutor/internal/tools"
)

// ErrToolBudget is returned when a turn exceeds the tool round cap.
var ErrToolBudget = errors.New("agent: tool round budget exceeded")

const defaultMaxToolRounds = 5

// Loop is the tool-orchestration loop.
type Loop struct {
	brain         brain.Brain
	tools         *tools.Registry
	maxToolRounds int
	log           *slog.Logger
}

// Config configures the loop.
type Config struct {
	Brain         brain.Brain
	Tools         *tools.Registry
	MaxToolRounds int
	Logger        *slog.Logger
}

// New creates a loop with defaults applied.
func New(cfg Config) *Loop {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		brain:         cfg.Brain,
		tools:         cfg.Tools,
		maxToolRounds: maxRounds,
		log:           log,
	}
}

// Turn is one line of conversation history.
type Turn struct {
	At     time.Time
	Sender string
	Text   string
}

// Request is everything the loop needs to produce one reply.
type Request struct {
	ThreadID      string
	UserID        string
	History       []Turn
	Material      string
	VocabSnapshot string
}

// Respond produces the tutor's next message. Tool calls requested by the
// model are executed in emission order; a failing tool feeds its failure
// back as the tool result rather than aborting the turn.
func (l *Loop) Respond(ctx context.Context, req *Request) (string, error) {
	messages := []brain.Message{
		{Role: brain.RoleSystem, Content: tutorInstruction},
		{Role: brain.RoleUser, Content: contextBlock(req)},
	}
	specs := l.toolSpecs()

	for round := 0; ; round++ {
		resp, err := l.brain.Chat(ctx, &brain.ChatRequest{
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			return "", fmt.Errorf("model turn failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}
		if round >= l.maxToolRounds {
			return "", fmt.Errorf("%w: %d rounds on thread %s", ErrToolBudget, round, req.ThreadID)
		}

		messages = append(messages, brain.Message{
			Role:      brain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := l.execute(ctx, call)
			messages = append(messages, brain.Message{
				Role:       brain.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}

// execute runs one tool call, folding any failure into the result text.
func (l *Loop) execute(ctx context.Context, call brain.ToolCall) string {
	tool, ok := l.tools.Get(call.Name)
	if !ok {
		l.log.Warn("unknown tool requested", "tool", call.Name)
		return fmt.Sprintf("Tool %q does not exist.", call.Name)
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		l.log.Warn("bad tool arguments", "tool", call.Name, "error", err)
		return fmt.Sprintf("Tool %q got invalid arguments: %v", call.Name, err)
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		l.log.Warn("tool failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Tool %q failed: %v", call.Name, err)
	}
	return out
}

func (l *Loop) toolSpecs() []brain.ToolSpec {
	var out []brain.ToolSpec
	for _, spec := range l.tools.Specs() {
		out = append(out, brain.ToolSpec{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	return out
}

// contextBlock renders the per-turn context the model sees: ids, history,
// material and the vocabulary snapshot.
func contextBlock(req *Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread id: %s\nUser id: %s\n\nConversation so far:\n", req.ThreadID, req.UserID)
	for _, turn := range req.History {
		fmt.Fprintf(&b, "At %s from %s: %s\n", turn.At.Format("2006-01-02 15:04"), turn.Sender, turn.Text)
	}
	if req.Material != "" {
		fmt.Fprintf(&b, "\nLesson material (lyrics):\n%s\n", req.Material)
	}
	if req.VocabSnapshot != "" {
		fmt.Fprintf(&b, "\nVocabulary of this user:\n%s\n", req.VocabSnapshot)
	}
	b.WriteString("\nReply to the user's last message.")
	return b.String()
}

func decodeArgs(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
