package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"querygraph/domain"
	"querygraph/llm"
)

const reasoningSystemPrompt = `You are a reasoning worker. Synthesize or
critique the supplied material to address the task. Reply with the text of
your synthesis only.`

// reasoningWindow bounds how much trailing context the worker sees.
const reasoningWindow = 6

// ReasoningWorker performs a stateless single-turn synthesis over the
// supplied context. It never suspends.
type ReasoningWorker struct {
	generator llm.Generator
}

// NewReasoningWorker creates a reasoning worker.
func NewReasoningWorker(generator llm.Generator) *ReasoningWorker {
	return &ReasoningWorker{generator: generator}
}

// Run produces a reasoning-output message for the task. When the task is
// absent it derives one by quoting the most recent non-supervisor message.
// Model failures here are turn-fatal and carry the reasoning identity.
func (w *ReasoningWorker) Run(ctx context.Context, task string, messages []domain.Message) (domain.Message, error) {
	if task == "" {
		task = deriveTask(messages)
	}

	window := messages
	if len(window) > reasoningWindow {
		window = window[len(window)-reasoningWindow:]
	}
	history := append(append([]domain.Message{}, window...), domain.Message{
		Role:    domain.RoleUser,
		Origin:  domain.OriginUserInput,
		Content: task,
	})

	text, err := w.generator.Generate(ctx, reasoningSystemPrompt, history)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return domain.Message{}, err
		}
		return domain.Message{}, domain.NewModelCallError(domain.NodeReasoning, err)
	}

	return domain.Message{
		Role:      domain.RoleAssistant,
		Origin:    domain.OriginReasoningOutput,
		Content:   text,
		CreatedAt: time.Now(),
	}, nil
}

func deriveTask(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Origin != domain.OriginSupervisorDecision {
			return fmt.Sprintf("Synthesize a response to: %q", messages[i].Content)
		}
	}
	return "Synthesize a response from the conversation so far."
}
