package graph

import (
	"context"
	"errors"
	"time"

	"querygraph/domain"
	"querygraph/llm"
)

// supervisorWindow bounds how many trailing messages the supervisor sees
// on top of the task framing.
const supervisorWindow = 3

const supervisorSystemPrompt = `You are the supervisor of a research system.
Review the conversation and issue exactly one instruction, on a single line:

DELEGATE: research_worker; TASK: <what to look up>
DELEGATE: reasoning_worker; TASK: <what to synthesize or critique>
FINALIZE: <the final answer for the user>

Delegate to the research worker when external information is needed, to the
reasoning worker when the gathered material needs synthesis, and finalize
once the user's question can be answered. Reply with the instruction only.`

// Supervisor is the control node. Each invocation makes one model call and
// wraps the returned text as a supervisor-decision message. It never
// parses its own output; that is ParseInstruction's job.
type Supervisor struct {
	generator llm.Generator
}

// NewSupervisor creates a supervisor backed by the given model.
func NewSupervisor(generator llm.Generator) *Supervisor {
	return &Supervisor{generator: generator}
}

// Decide produces the supervisor's next decision message. A configuration
// failure passes through untouched; any other model failure is wrapped so
// the caller can tell which component made the call.
func (s *Supervisor) Decide(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	window := messages
	if len(window) > supervisorWindow {
		window = window[len(window)-supervisorWindow:]
	}

	text, err := s.generator.Generate(ctx, supervisorSystemPrompt, window)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return domain.Message{}, err
		}
		return domain.Message{}, domain.NewModelCallError(domain.NodeSupervisor, err)
	}

	return domain.Message{
		Role:      domain.RoleAssistant,
		Origin:    domain.OriginSupervisorDecision,
		Content:   text,
		CreatedAt: time.Now(),
	}, nil
}
