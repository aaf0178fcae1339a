package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"querygraph/domain"
	"querygraph/llm"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req llm.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		// Tool turns are replayed as user turns on the wire.
		assert.Equal(t, "user", req.Messages[2].Role)

		json.NewEncoder(w).Encode(llm.ChatCompletionResponse{
			Choices: []llm.Choice{{Message: &llm.ChatMessage{Role: "assistant", Content: "FINALIZE: done"}}},
		})
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "test-key", "test-model", 5*time.Second)
	text, err := client.Generate(context.Background(), "you are a supervisor", []domain.Message{
		{Role: domain.RoleUser, Content: "a question"},
		{Role: domain.RoleTool, Content: "a finding"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "FINALIZE: done", text)
}

func TestGenerateMissingConfig(t *testing.T) {
	client := llm.NewClient("", "", "m", time.Second)

	_, err := client.Generate(context.Background(), "s", nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGenerateRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "bad-key", "m", time.Second)
	_, err := client.Generate(context.Background(), "s", nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(llm.ErrorResponse{Error: &llm.APIError{Message: "overloaded", Type: "server_error"}})
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "k", "m", time.Second)
	_, err := client.Generate(context.Background(), "s", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(llm.ChatCompletionResponse{})
	}))
	defer server.Close()

	client := llm.NewClient(server.URL, "k", "m", time.Second)
	_, err := client.Generate(context.Background(), "s", nil)
	assert.Error(t, err)
}

func TestMockClientProtocol(t *testing.T) {
	mock := llm.NewMockClient()
	ctx := context.Background()

	// First supervisor call delegates the user's question.
	text, err := mock.Generate(ctx, "supervisor framing", []domain.Message{
		{Role: domain.RoleUser, Origin: domain.OriginUserInput, Content: "what is X?"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "DELEGATE: research_worker; TASK: what is X?", text)

	// Research framing without findings proposes a search.
	text, err = mock.Generate(ctx, "reply with SEARCH: or ANSWER:", []domain.Message{
		{Role: domain.RoleUser, Content: "what is X?"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "SEARCH: what is X?", text)

	// With a finding in hand it answers.
	text, err = mock.Generate(ctx, "reply with SEARCH: or ANSWER:", []domain.Message{
		{Role: domain.RoleUser, Content: "what is X?"},
		{Role: domain.RoleTool, Content: "X is 42"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "ANSWER: X is 42", text)

	// Once worker output exists the supervisor finalizes.
	text, err = mock.Generate(ctx, "supervisor framing", []domain.Message{
		{Role: domain.RoleUser, Origin: domain.OriginUserInput, Content: "what is X?"},
		{Role: domain.RoleAssistant, Origin: domain.OriginResearchOutput, Content: "X is 42"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "FINALIZE: X is 42", text)
}
