package domain

import "encoding/json"

// OrchestrateRequest is the body of POST /orchestrate. A non-nil
// ResumePayload together with a ThreadID selects the resume path;
// otherwise this is a start and Query must be non-empty.
type OrchestrateRequest struct {
	Query         string          `json:"query,omitempty"`
	Messages      []Message       `json:"messages,omitempty"`
	ThreadID      string          `json:"thread_id,omitempty"`
	ResumePayload json.RawMessage `json:"resume_payload,omitempty"`
}

// IsResume reports whether the request selects the resume path.
func (r *OrchestrateRequest) IsResume() bool {
	return r.ResumePayload != nil && r.ThreadID != ""
}

// CompletedResponse is returned when a turn reaches a terminal node.
type CompletedResponse struct {
	Text     string    `json:"text"`
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`
}

// InterruptedResponse is returned when a turn suspends awaiting a human
// decision on a proposed tool call.
type InterruptedResponse struct {
	Type          string              `json:"type"` // always "interrupted"
	ThreadID      string              `json:"thread_id"`
	InterruptData InterruptDescriptor `json:"interrupt_data"`
	Messages      []Message           `json:"messages"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ThreadResponse describes a thread's current state, including a pending
// interrupt so a caller can re-render a lost confirmation prompt.
type ThreadResponse struct {
	ThreadID         string               `json:"thread_id"`
	Status           ThreadStatus         `json:"status"`
	PendingInterrupt *InterruptDescriptor `json:"pending_interrupt,omitempty"`
	Messages         int                  `json:"messages"`
}

// ResumePayload is the parsed form of the caller-supplied resume value.
type ResumePayload struct {
	Approved bool
	Value    string
}

// resumeObject is the accepted object shape for a resume payload.
type resumeObject struct {
	Status        string `json:"status,omitempty"`
	ApprovedQuery string `json:"approved_query,omitempty"`
}

// ParseResumePayload maps the caller-supplied resume value onto an
// approval or a rejection. Accepted forms, in priority order: a JSON
// string (used verbatim as the approved argument), an object with a
// non-empty approved_query, an object with status "rejected". Any other
// shape is a rejection; unclear input must never trigger a live call with
// the original unapproved argument.
func ParseResumePayload(raw json.RawMessage) ResumePayload {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return ResumePayload{}
		}
		return ResumePayload{Approved: true, Value: s}
	}

	var obj resumeObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.ApprovedQuery != "" && obj.Status != "rejected" {
			return ResumePayload{Approved: true, Value: obj.ApprovedQuery}
		}
		return ResumePayload{}
	}

	return ResumePayload{}
}
