// Package domain defines the core domain models for querygraph.
package domain

// ThreadStatus represents the lifecycle state of a thread.
type ThreadStatus string

const (
	ThreadStatusRunning   ThreadStatus = "RUNNING"
	ThreadStatusSuspended ThreadStatus = "SUSPENDED"
	ThreadStatusCompleted ThreadStatus = "COMPLETED"
	ThreadStatusFailed    ThreadStatus = "FAILED"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// OriginTag identifies which component produced a message. Downstream
// routing and context selection key off this tag, not the role.
type OriginTag string

const (
	OriginUserInput          OriginTag = "user-input"
	OriginSupervisorDecision OriginTag = "supervisor-decision"
	OriginResearchOutput     OriginTag = "research-output"
	OriginReasoningOutput    OriginTag = "reasoning-output"
	OriginToolResult         OriginTag = "tool-result"
	OriginToolRejection      OriginTag = "tool-rejection"
)

// Node names the vertices of the supervisor/worker control graph.
type Node string

const (
	NodeSupervisor Node = "supervisor"
	NodeResearch   Node = "research_worker"
	NodeReasoning  Node = "reasoning_worker"
	NodeTerminal   Node = "terminal"
)

// EventType represents the type of a step event.
type EventType string

const (
	EventTypeTurnStarted        EventType = "turn_started"
	EventTypeSupervisorDecision EventType = "supervisor_decision"
	EventTypeDelegated          EventType = "delegated"
	EventTypeInterrupted        EventType = "interrupted"
	EventTypeResumed            EventType = "resumed"
	EventTypeWorkerOutput       EventType = "worker_output"
	EventTypeTurnCompleted      EventType = "turn_completed"
	EventTypeTurnFailed         EventType = "turn_failed"
)
