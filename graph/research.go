package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"querygraph/domain"
	"querygraph/llm"
	"querygraph/policy"
	"querygraph/search"
)

// SearchToolName is the tool identity surfaced in interrupt descriptors.
const SearchToolName = "knowledge.search"

const (
	searchPrefix = "SEARCH: "
	answerPrefix = "ANSWER:"
)

const researchSystemPrompt = `You are a research worker. You are given a task
and the results gathered so far. Reply with exactly one line:

SEARCH: <query>    to look something up in the external knowledge source
ANSWER: <text>     when you have enough information to report back

Reply with the instruction only.`

// Outcome is what a worker step produced: messages to append to the
// thread log, and, when suspended, the interrupt plus the resume point.
type Outcome struct {
	Messages  []domain.Message
	Interrupt *domain.InterruptDescriptor
	Resume    *domain.ResumePoint
}

// ResearchWorker runs a bounded tool-use loop against the external search
// source. Every proposed search is checked against the confirmation
// policy; calls requiring approval suspend the worker instead of running.
type ResearchWorker struct {
	generator    llm.Generator
	searcher     search.Searcher
	policy       *policy.Engine
	maxToolCalls int
	logger       *zap.Logger
}

// NewResearchWorker creates a research worker. The searcher and policy
// engine are injected; the worker holds no ambient state of its own.
func NewResearchWorker(generator llm.Generator, searcher search.Searcher, policyEngine *policy.Engine, maxToolCalls int, logger *zap.Logger) *ResearchWorker {
	if maxToolCalls <= 0 {
		maxToolCalls = 3
	}
	return &ResearchWorker{
		generator:    generator,
		searcher:     searcher,
		policy:       policyEngine,
		maxToolCalls: maxToolCalls,
		logger:       logger,
	}
}

// Run starts the tool loop for a freshly delegated task.
func (w *ResearchWorker) Run(ctx context.Context, threadID, task string) (*Outcome, error) {
	st := &domain.ResumePoint{Node: domain.NodeResearch, Task: task}
	return w.loop(ctx, threadID, st, nil)
}

// ResumeRun re-enters the loop at the suspended tool-call site, with the
// caller's resolution in place of the tool's return value. A rejected (or
// unparseable) payload skips the call entirely; the original unapproved
// argument is never executed.
func (w *ResearchWorker) ResumeRun(ctx context.Context, threadID string, st *domain.ResumePoint, payload domain.ResumePayload) (*Outcome, error) {
	proposed := st.ProposedQuery
	st.ProposedQuery = ""
	st.ToolCalls++

	var pending []domain.Message
	if payload.Approved {
		msg := w.executeSearch(ctx, payload.Value)
		pending = append(pending, msg)
		st.Findings = append(st.Findings, msg.Content)
	} else {
		msg := domain.Message{
			Role:      domain.RoleTool,
			Origin:    domain.OriginToolRejection,
			Content:   fmt.Sprintf("search for %q was rejected by the caller", proposed),
			CreatedAt: time.Now(),
		}
		pending = append(pending, msg)
		st.Findings = append(st.Findings, msg.Content)
	}

	return w.loop(ctx, threadID, st, pending)
}

func (w *ResearchWorker) loop(ctx context.Context, threadID string, st *domain.ResumePoint, pending []domain.Message) (*Outcome, error) {
	for {
		text, err := w.generator.Generate(ctx, researchSystemPrompt, w.workerContext(st))
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				return nil, err
			}
			return nil, domain.NewModelCallError(domain.NodeResearch, err)
		}

		query, isSearch := strings.CutPrefix(text, searchPrefix)
		if isSearch && st.ToolCalls < w.maxToolCalls {
			query = strings.TrimSpace(query)

			decision, err := w.policy.Evaluate(ctx, SearchToolName, query)
			if err != nil {
				// Policy failures fall back to confirmation, never to a
				// silent live call.
				w.logger.Warn("policy evaluation failed", zap.Error(err))
				decision = policy.DecisionRequireApproval
			}

			switch decision {
			case policy.DecisionAllow:
				msg := w.executeSearch(ctx, query)
				pending = append(pending, msg)
				st.Findings = append(st.Findings, msg.Content)
				st.ToolCalls++
				continue

			case policy.DecisionBlock:
				msg := domain.Message{
					Role:      domain.RoleTool,
					Origin:    domain.OriginToolRejection,
					Content:   fmt.Sprintf("search for %q was blocked by policy", query),
					CreatedAt: time.Now(),
				}
				pending = append(pending, msg)
				st.Findings = append(st.Findings, msg.Content)
				st.ToolCalls++
				continue

			default:
				st.ProposedQuery = query
				return &Outcome{
					Messages: pending,
					Interrupt: &domain.InterruptDescriptor{
						Kind:             domain.InterruptKindToolConfirmation,
						ToolName:         SearchToolName,
						ProposedArgument: query,
						ThreadID:         threadID,
					},
					Resume: st,
				}, nil
			}
		}

		content := text
		if ans, ok := strings.CutPrefix(text, answerPrefix); ok {
			content = strings.TrimSpace(ans)
		} else if isSearch {
			// Tool budget exhausted mid-proposal; report what was found.
			content = strings.Join(st.Findings, "\n")
			if content == "" {
				content = "no results: the search budget was exhausted before any source could be consulted"
			}
		}

		out := domain.Message{
			Role:      domain.RoleAssistant,
			Origin:    domain.OriginResearchOutput,
			Content:   content,
			CreatedAt: time.Now(),
		}
		return &Outcome{Messages: append(pending, out)}, nil
	}
}

// executeSearch runs an approved query. Source errors are recorded in the
// result message rather than failing the turn; the supervisor decides
// what to do with a degraded finding.
func (w *ResearchWorker) executeSearch(ctx context.Context, query string) domain.Message {
	content, err := w.searcher.Search(ctx, query)
	if err != nil {
		w.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		content = fmt.Sprintf("search for %q failed: %v", query, err)
	}
	return domain.Message{
		Role:      domain.RoleTool,
		Origin:    domain.OriginToolResult,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// workerContext rebuilds the model-facing transcript for the loop: the
// task as the user turn, then one tool turn per finding.
func (w *ResearchWorker) workerContext(st *domain.ResumePoint) []domain.Message {
	msgs := make([]domain.Message, 0, len(st.Findings)+1)
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Origin: domain.OriginUserInput, Content: st.Task})
	for _, f := range st.Findings {
		msgs = append(msgs, domain.Message{Role: domain.RoleTool, Origin: domain.OriginToolResult, Content: f})
	}
	return msgs
}
