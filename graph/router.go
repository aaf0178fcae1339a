package graph

import "querygraph/domain"

// Route selects the next node for a supervisor instruction. Unrecognized
// decisions route to terminal: an unparseable decision ends the turn
// instead of looping.
func Route(inst domain.Instruction) domain.Node {
	switch inst.Kind {
	case domain.InstructionDelegate:
		return inst.Delegate.TargetWorker
	case domain.InstructionFinalize:
		return domain.NodeTerminal
	default:
		return domain.NodeTerminal
	}
}
