// Package policy decides whether a proposed tool call may run, must be
// confirmed by a human, or is blocked outright.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by Evaluate.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.confirmation.decision"),
		rego.Module("confirmation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the confirmation policy for a proposed tool call.
// Input keys: tool_name, query. Returns one of the Decision constants.
// An unmatched or malformed policy output falls back to require_approval;
// a missing rule must never let a tool call run unconfirmed.
func (e *Engine) Evaluate(ctx context.Context, toolName, query string) (string, error) {
	input := map[string]interface{}{
		"tool_name": toolName,
		"query":     query,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionRequireApproval, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		switch s {
		case DecisionAllow, DecisionRequireApproval, DecisionBlock:
			return s, nil
		}
	}
	return DecisionRequireApproval, nil
}

// DefaultPolicy requires a human confirmation for every tool call. Deploys
// with trusted sources can widen this with allow rules per tool.
const DefaultPolicy = `
package confirmation

default decision = "require_approval"

# Example: let a vetted internal source run unconfirmed
# decision = "allow" {
# 	input.tool_name == "encyclopedia.lookup"
# }

# Refuse obviously empty proposals instead of bothering a human
decision = "block" {
	input.query == ""
}
`
