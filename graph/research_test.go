package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"querygraph/domain"
	"querygraph/graph"
	"querygraph/llm"
	"querygraph/policy"
)

const blockEverythingPolicy = `
package confirmation

default decision = "block"
`

func newResearchWorker(t *testing.T, gen llm.Generator, searcher *recordingSearcher, policySrc string, maxToolCalls int) *graph.ResearchWorker {
	t.Helper()

	engine, err := policy.NewEngine(context.Background(), policySrc)
	assert.NoError(t, err)

	return graph.NewResearchWorker(gen, searcher, engine, maxToolCalls, zap.NewNop())
}

func TestResearchRunAnswersDirectly(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("ANSWER: nothing to look up")
	searcher := &recordingSearcher{}
	w := newResearchWorker(t, gen, searcher, policy.DefaultPolicy, 3)

	out, err := w.Run(context.Background(), "th_1", "a task")
	assert.NoError(t, err)
	assert.Nil(t, out.Interrupt)
	assert.Len(t, out.Messages, 1)
	assert.Equal(t, domain.OriginResearchOutput, out.Messages[0].Origin)
	assert.Equal(t, "nothing to look up", out.Messages[0].Content)
	assert.Empty(t, searcher.recorded())
}

func TestResearchRunSuspendsUnderDefaultPolicy(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("SEARCH: melting point of iron")
	searcher := &recordingSearcher{}
	w := newResearchWorker(t, gen, searcher, policy.DefaultPolicy, 3)

	out, err := w.Run(context.Background(), "th_1", "melting point of iron")
	assert.NoError(t, err)
	assert.NotNil(t, out.Interrupt)
	assert.Equal(t, "melting point of iron", out.Interrupt.ProposedArgument)
	assert.Equal(t, "th_1", out.Interrupt.ThreadID)
	assert.NotNil(t, out.Resume)
	assert.Equal(t, "melting point of iron", out.Resume.ProposedQuery)
	assert.Zero(t, out.Resume.ToolCalls)
	assert.Empty(t, searcher.recorded())
}

func TestResearchBlockPolicyRecordsRejection(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push(
		"SEARCH: anything at all",
		"ANSWER: the source refused the lookup",
	)
	searcher := &recordingSearcher{}
	w := newResearchWorker(t, gen, searcher, blockEverythingPolicy, 3)

	out, err := w.Run(context.Background(), "th_1", "a task")
	assert.NoError(t, err)
	assert.Nil(t, out.Interrupt)
	assert.Empty(t, searcher.recorded())

	assert.Len(t, out.Messages, 2)
	assert.Equal(t, domain.OriginToolRejection, out.Messages[0].Origin)
	assert.Contains(t, out.Messages[0].Content, "blocked by policy")
	assert.Equal(t, domain.OriginResearchOutput, out.Messages[1].Origin)
}

func TestResearchToolBudget(t *testing.T) {
	// Under an allow policy the worker keeps searching until the budget is
	// spent, then must report findings instead of proposing another call.
	gen := &scriptedGenerator{}
	gen.push(
		"SEARCH: first",
		"SEARCH: second",
		"SEARCH: third", // budget of 2 exhausted; treated as final output
	)
	searcher := &recordingSearcher{result: "a finding"}
	w := newResearchWorker(t, gen, searcher, allowSearchPolicy, 2)

	out, err := w.Run(context.Background(), "th_1", "a task")
	assert.NoError(t, err)
	assert.Nil(t, out.Interrupt)
	assert.Equal(t, []string{"first", "second"}, searcher.recorded())

	final := out.Messages[len(out.Messages)-1]
	assert.Equal(t, domain.OriginResearchOutput, final.Origin)
	assert.Contains(t, final.Content, "a finding")
}

func TestResearchSearchErrorIsAbsorbed(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push(
		"SEARCH: flaky query",
		"ANSWER: the source was unavailable",
	)
	searcher := &recordingSearcher{err: errors.New("connection refused")}
	w := newResearchWorker(t, gen, searcher, allowSearchPolicy, 3)

	out, err := w.Run(context.Background(), "th_1", "a task")
	assert.NoError(t, err)

	assert.Equal(t, domain.OriginToolResult, out.Messages[0].Origin)
	assert.Contains(t, out.Messages[0].Content, "failed")
	assert.Contains(t, out.Messages[0].Content, "connection refused")
}

func TestResearchModelFailure(t *testing.T) {
	modelErr := errors.New("upstream 500")
	gen := generatorFunc(func(context.Context, string, []domain.Message) (string, error) {
		return "", modelErr
	})
	w := newResearchWorker(t, gen, &recordingSearcher{}, policy.DefaultPolicy, 3)

	_, err := w.Run(context.Background(), "th_1", "a task")
	var callErr *domain.ModelCallError
	assert.ErrorAs(t, err, &callErr)
	assert.Equal(t, domain.NodeResearch, callErr.Component)
}

func TestResumeRunApprovedCountsAgainstBudget(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("ANSWER: done")
	searcher := &recordingSearcher{result: "r"}
	w := newResearchWorker(t, gen, searcher, policy.DefaultPolicy, 3)

	st := &domain.ResumePoint{Node: domain.NodeResearch, Task: "t", ProposedQuery: "q", ToolCalls: 0}
	out, err := w.ResumeRun(context.Background(), "th_1", st, domain.ResumePayload{Approved: true, Value: "q"})
	assert.NoError(t, err)
	assert.Nil(t, out.Interrupt)
	assert.Equal(t, []string{"q"}, searcher.recorded())
	assert.Equal(t, 1, st.ToolCalls)
	assert.Empty(t, st.ProposedQuery)
}

func TestResumeRunRejectedSkipsCall(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("ANSWER: done without the lookup")
	searcher := &recordingSearcher{}
	w := newResearchWorker(t, gen, searcher, policy.DefaultPolicy, 3)

	st := &domain.ResumePoint{Node: domain.NodeResearch, Task: "t", ProposedQuery: "secret things"}
	out, err := w.ResumeRun(context.Background(), "th_1", st, domain.ResumePayload{})
	assert.NoError(t, err)
	assert.Empty(t, searcher.recorded())

	assert.Equal(t, domain.OriginToolRejection, out.Messages[0].Origin)
	assert.Contains(t, out.Messages[0].Content, `"secret things"`)
}
