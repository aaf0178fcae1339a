// Package llm provides an abstraction over the external language model.
package llm

import (
	"context"

	"querygraph/domain"
)

// Generator is the model collaborator: given a system framing and a
// message history, it returns text. The orchestration core never looks
// past this interface.
type Generator interface {
	Generate(ctx context.Context, system string, history []domain.Message) (string, error)
}

// Ensure Client implements Generator.
var _ Generator = (*Client)(nil)
