package llm

import (
	"context"
	"strings"

	"querygraph/domain"
)

// MockClient is a scripted Generator for mock mode and tests. It answers
// in the decision encodings the graph expects: the first supervisor call
// delegates to the research worker, a research call proposes a search,
// and once any worker output exists the supervisor finalizes.
type MockClient struct{}

// NewMockClient creates a new mock model client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Generator = (*MockClient)(nil)

// Generate returns a canned decision based on the framing and history.
func (m *MockClient) Generate(_ context.Context, system string, history []domain.Message) (string, error) {
	if strings.Contains(system, "SEARCH:") {
		// Research worker framing.
		for _, msg := range history {
			if msg.Role == domain.RoleTool {
				return "ANSWER: " + msg.Content, nil
			}
		}
		task := lastContent(history)
		return "SEARCH: " + task, nil
	}

	// Supervisor framing.
	for _, msg := range history {
		if msg.Origin == domain.OriginResearchOutput || msg.Origin == domain.OriginReasoningOutput {
			return "FINALIZE: " + msg.Content, nil
		}
	}
	return "DELEGATE: research_worker; TASK: " + lastContent(history), nil
}

func lastContent(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Content
}
