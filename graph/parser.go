// Package graph implements the supervisor/worker control graph: decision
// parsing, routing, worker execution, and the interrupt/resume executor.
package graph

import (
	"strings"

	"querygraph/domain"
)

const (
	delegatePrefix = "DELEGATE: "
	taskSeparator  = "; TASK: "
	finalizePrefix = "FINALIZE:"
)

// ParseInstruction maps supervisor free text onto the Instruction union.
// The match is case-sensitive and exact: anything that is not a
// well-formed DELEGATE or FINALIZE line is Unrecognized, which the router
// turns into a terminal step. Ambiguity ends the turn, it is never guessed.
func ParseInstruction(text string) domain.Instruction {
	if rest, ok := strings.CutPrefix(text, delegatePrefix); ok {
		worker, task, found := strings.Cut(rest, taskSeparator)
		if !found {
			return unrecognized(text)
		}
		switch domain.Node(worker) {
		case domain.NodeResearch, domain.NodeReasoning:
			return domain.Instruction{
				Kind: domain.InstructionDelegate,
				Delegate: &domain.DelegateInstruction{
					TargetWorker: domain.Node(worker),
					TaskText:     strings.TrimSpace(task),
				},
			}
		}
		return unrecognized(text)
	}

	if rest, ok := strings.CutPrefix(text, finalizePrefix); ok {
		return domain.Instruction{
			Kind:     domain.InstructionFinalize,
			Finalize: &domain.FinalizeInstruction{AnswerText: strings.TrimSpace(rest)},
		}
	}

	return unrecognized(text)
}

func unrecognized(text string) domain.Instruction {
	return domain.Instruction{Kind: domain.InstructionUnrecognized, Raw: text}
}
