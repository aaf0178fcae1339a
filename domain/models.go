package domain

import (
	"encoding/json"
	"time"
)

// Message is a single entry in a thread's append-only log.
type Message struct {
	MessageID string    `json:"message_id,omitempty"`
	Role      Role      `json:"role"`
	Origin    OriginTag `json:"origin"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// InterruptKind classifies an interrupt. Only tool confirmations exist today.
type InterruptKind string

const InterruptKindToolConfirmation InterruptKind = "tool_confirmation"

// InterruptDescriptor is the only object exposed to the caller while a
// thread is suspended. It must fully describe what is being asked so the
// caller can render an approve/edit/reject prompt without inspecting
// internal state.
type InterruptDescriptor struct {
	Kind             InterruptKind `json:"type"`
	ToolName         string        `json:"tool_name"`
	ProposedArgument string        `json:"proposed_query"`
	ThreadID         string        `json:"thread_id"`
}

// ResumePoint records where a suspended research worker must re-enter its
// loop. The proposed query is re-played with the caller-supplied value in
// place of calling the tool.
type ResumePoint struct {
	Node          Node     `json:"node"`
	Task          string   `json:"task"`
	ProposedQuery string   `json:"proposed_query"`
	Findings      []string `json:"findings,omitempty"`
	ToolCalls     int      `json:"tool_calls"`
}

// ExecutionSnapshot is the durable representation of a thread's execution
// position. It is created on start and overwritten after every node step.
type ExecutionSnapshot struct {
	ThreadID         string               `json:"thread_id"`
	Status           ThreadStatus         `json:"status"`
	Messages         []Message            `json:"messages"`
	PendingInterrupt *InterruptDescriptor `json:"pending_interrupt,omitempty"`
	Resume           *ResumePoint         `json:"resume,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ThreadSummary is the listing view of a thread.
type ThreadSummary struct {
	ThreadID  string       `json:"thread_id"`
	Status    ThreadStatus `json:"status"`
	Messages  int          `json:"messages"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Event is a step event recorded for a thread, used for live streaming and
// post-hoc inspection.
type Event struct {
	EventID  string          `json:"event_id"`
	ThreadID string          `json:"thread_id"`
	Ts       int64           `json:"ts"` // Unix milliseconds
	Type     EventType       `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Instruction is the typed form of a supervisor decision. Exactly one of
// Delegate and Finalize is set for the corresponding kind; Raw carries the
// unparsed text for Unrecognized.
type Instruction struct {
	Kind     InstructionKind
	Delegate *DelegateInstruction
	Finalize *FinalizeInstruction
	Raw      string
}

// InstructionKind tags the Instruction union.
type InstructionKind string

const (
	InstructionDelegate     InstructionKind = "delegate"
	InstructionFinalize     InstructionKind = "finalize"
	InstructionUnrecognized InstructionKind = "unrecognized"
)

// DelegateInstruction hands a task to a worker.
type DelegateInstruction struct {
	TargetWorker Node
	TaskText     string
}

// FinalizeInstruction ends the turn with an answer.
type FinalizeInstruction struct {
	AnswerText string
}

// TurnResult is the outcome of one Start or Resume invocation.
type TurnResult struct {
	ThreadID  string
	Status    ThreadStatus
	Text      string
	Interrupt *InterruptDescriptor
	Messages  []Message
}
