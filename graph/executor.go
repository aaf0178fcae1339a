package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"querygraph/domain"
	"querygraph/store"
)

// EventSink receives step events for live delivery. The store keeps the
// durable copy; the sink is best-effort fan-out.
type EventSink interface {
	Publish(event domain.Event)
}

// Executor drives the supervisor -> router -> worker loop, persists a
// snapshot after every node step, and owns the suspend/resume contract.
// Each thread executes strictly sequentially; independent threads run
// concurrently and share nothing but the store.
type Executor struct {
	store      store.Store
	supervisor *Supervisor
	research   *ResearchWorker
	reasoning  *ReasoningWorker
	sink       EventSink
	turnLimit  int
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor creates an executor. A nil sink disables live event fan-out.
func NewExecutor(st store.Store, supervisor *Supervisor, research *ResearchWorker, reasoning *ReasoningWorker, sink EventSink, turnLimit int, logger *zap.Logger) *Executor {
	if turnLimit <= 0 {
		turnLimit = 25
	}
	return &Executor{
		store:      st,
		supervisor: supervisor,
		research:   research,
		reasoning:  reasoning,
		sink:       sink,
		turnLimit:  turnLimit,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockThread serializes execution per thread id. Locks are retained for
// the life of the process; the map grows with the number of distinct
// threads served.
func (e *Executor) lockThread(threadID string) func() {
	e.mu.Lock()
	l, ok := e.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[threadID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Start begins a new turn. A missing thread id allocates one; an existing
// completed or failed thread gets a fresh turn appended to its log. A
// thread that is mid-step or suspended cannot be started over.
func (e *Executor) Start(ctx context.Context, threadID, query string, history []domain.Message) (*domain.TurnResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if threadID == "" {
		threadID = "th_" + uuid.New().String()[:8]
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	snap, err := e.store.GetSnapshot(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	now := time.Now()
	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Origin:    domain.OriginUserInput,
		Content:   query,
		CreatedAt: now,
	}

	if snap == nil {
		snap = &domain.ExecutionSnapshot{
			ThreadID:  threadID,
			Status:    domain.ThreadStatusRunning,
			CreatedAt: now,
			UpdatedAt: now,
		}
		e.appendMessages(snap, normalizeHistory(history)...)
		e.appendMessages(snap, userMsg)
		if err := e.store.CreateSnapshot(ctx, snap); err != nil {
			if err == store.ErrAlreadyExists {
				return nil, fmt.Errorf("%w: thread %s was created concurrently", domain.ErrInvalidState, threadID)
			}
			return nil, fmt.Errorf("failed to create thread: %w", err)
		}
	} else {
		switch snap.Status {
		case domain.ThreadStatusRunning:
			return nil, fmt.Errorf("%w: thread %s is mid-step", domain.ErrInvalidState, threadID)
		case domain.ThreadStatusSuspended:
			return nil, fmt.Errorf("%w: thread %s is suspended awaiting resume", domain.ErrInvalidState, threadID)
		}
		snap.Status = domain.ThreadStatusRunning
		snap.Resume = nil
		snap.PendingInterrupt = nil
		e.appendMessages(snap, userMsg)
		if err := e.persist(ctx, snap); err != nil {
			return nil, err
		}
	}

	e.recordEvent(ctx, threadID, domain.EventTypeTurnStarted, map[string]interface{}{"query": query})

	return e.runLoop(ctx, snap)
}

// Resume re-enters a suspended thread with the caller's resolution at the
// suspended tool-call site, then continues the same loop as Start.
func (e *Executor) Resume(ctx context.Context, threadID string, payload json.RawMessage) (*domain.TurnResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread_id is required", domain.ErrInvalidRequest)
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	snap, err := e.store.GetSnapshot(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: thread %s not found", domain.ErrInvalidRequest, threadID)
	}
	if snap.Status != domain.ThreadStatusSuspended || snap.Resume == nil {
		return nil, fmt.Errorf("%w: thread %s is not suspended", domain.ErrInvalidRequest, threadID)
	}

	resume := snap.Resume
	snap.Status = domain.ThreadStatusRunning
	snap.Resume = nil
	snap.PendingInterrupt = nil
	if err := e.persist(ctx, snap); err != nil {
		return nil, err
	}

	parsed := domain.ParseResumePayload(payload)
	e.recordEvent(ctx, threadID, domain.EventTypeResumed, map[string]interface{}{"approved": parsed.Approved})

	outcome, err := e.research.ResumeRun(ctx, threadID, resume, parsed)
	if err != nil {
		return nil, e.failTurn(ctx, snap, err)
	}
	if result, done, err := e.applyOutcome(ctx, snap, outcome); done || err != nil {
		return result, err
	}

	return e.runLoop(ctx, snap)
}

// ExpireInterrupt fails a thread whose interrupt outlived its deadline.
// A thread that was resumed in the meantime is left alone.
func (e *Executor) ExpireInterrupt(ctx context.Context, threadID string) error {
	unlock := e.lockThread(threadID)
	defer unlock()

	snap, err := e.store.GetSnapshot(ctx, threadID)
	if err != nil {
		return err
	}
	if snap == nil || snap.Status != domain.ThreadStatusSuspended {
		return nil
	}

	snap.Status = domain.ThreadStatusFailed
	snap.Resume = nil
	snap.PendingInterrupt = nil
	if err := e.persist(ctx, snap); err != nil {
		return err
	}
	e.recordEvent(ctx, threadID, domain.EventTypeTurnFailed, map[string]interface{}{"error": "interrupt expired"})
	return nil
}

// runLoop drives supervisor -> router -> worker until a terminal node, a
// suspension, or the turn cap.
func (e *Executor) runLoop(ctx context.Context, snap *domain.ExecutionSnapshot) (*domain.TurnResult, error) {
	for steps := 0; ; steps++ {
		if steps >= e.turnLimit {
			return nil, e.failTurn(ctx, snap, fmt.Errorf("%w: %d round trips without a terminal decision", domain.ErrTurnLimit, e.turnLimit))
		}

		decision, err := e.supervisor.Decide(ctx, snap.Messages)
		if err != nil {
			return nil, e.failTurn(ctx, snap, err)
		}
		e.appendMessages(snap, decision)
		if err := e.persist(ctx, snap); err != nil {
			return nil, err
		}
		e.recordEvent(ctx, snap.ThreadID, domain.EventTypeSupervisorDecision, map[string]interface{}{"text": decision.Content})

		inst := ParseInstruction(decision.Content)
		node := Route(inst)

		switch node {
		case domain.NodeTerminal:
			return e.completeTurn(ctx, snap, inst)

		case domain.NodeResearch:
			e.recordEvent(ctx, snap.ThreadID, domain.EventTypeDelegated, map[string]interface{}{
				"worker": string(domain.NodeResearch), "task": inst.Delegate.TaskText,
			})
			outcome, err := e.research.Run(ctx, snap.ThreadID, inst.Delegate.TaskText)
			if err != nil {
				return nil, e.failTurn(ctx, snap, err)
			}
			if result, done, err := e.applyOutcome(ctx, snap, outcome); done || err != nil {
				return result, err
			}

		case domain.NodeReasoning:
			e.recordEvent(ctx, snap.ThreadID, domain.EventTypeDelegated, map[string]interface{}{
				"worker": string(domain.NodeReasoning), "task": inst.Delegate.TaskText,
			})
			msg, err := e.reasoning.Run(ctx, inst.Delegate.TaskText, snap.Messages)
			if err != nil {
				return nil, e.failTurn(ctx, snap, err)
			}
			e.appendMessages(snap, msg)
			if err := e.persist(ctx, snap); err != nil {
				return nil, err
			}
			e.recordEvent(ctx, snap.ThreadID, domain.EventTypeWorkerOutput, map[string]interface{}{"origin": string(msg.Origin)})
		}
	}
}

// applyOutcome folds a research worker outcome into the snapshot. done is
// true when the thread suspended and the turn is over for now.
func (e *Executor) applyOutcome(ctx context.Context, snap *domain.ExecutionSnapshot, outcome *Outcome) (*domain.TurnResult, bool, error) {
	e.appendMessages(snap, outcome.Messages...)

	if outcome.Interrupt != nil {
		snap.Status = domain.ThreadStatusSuspended
		snap.Resume = outcome.Resume
		snap.PendingInterrupt = outcome.Interrupt
		if err := e.persist(ctx, snap); err != nil {
			return nil, true, err
		}
		e.recordEvent(ctx, snap.ThreadID, domain.EventTypeInterrupted, outcome.Interrupt)
		return &domain.TurnResult{
			ThreadID:  snap.ThreadID,
			Status:    domain.ThreadStatusSuspended,
			Interrupt: outcome.Interrupt,
			Messages:  snap.Messages,
		}, true, nil
	}

	if err := e.persist(ctx, snap); err != nil {
		return nil, true, err
	}
	if n := len(outcome.Messages); n > 0 {
		e.recordEvent(ctx, snap.ThreadID, domain.EventTypeWorkerOutput, map[string]interface{}{
			"origin": string(outcome.Messages[n-1].Origin),
		})
	}
	return nil, false, nil
}

// completeTurn finishes a turn at the terminal node. Finalize carries the
// answer; an unrecognized decision completes with a degraded result
// rather than looping.
func (e *Executor) completeTurn(ctx context.Context, snap *domain.ExecutionSnapshot, inst domain.Instruction) (*domain.TurnResult, error) {
	var text string
	if inst.Kind == domain.InstructionFinalize {
		text = inst.Finalize.AnswerText
	} else {
		text = "The supervisor did not produce a recognizable decision; ending the turn."
	}

	snap.Status = domain.ThreadStatusCompleted
	if err := e.persist(ctx, snap); err != nil {
		return nil, err
	}
	e.recordEvent(ctx, snap.ThreadID, domain.EventTypeTurnCompleted, map[string]interface{}{"text": text})

	return &domain.TurnResult{
		ThreadID: snap.ThreadID,
		Status:   domain.ThreadStatusCompleted,
		Text:     text,
		Messages: snap.Messages,
	}, nil
}

// failTurn marks the thread Failed and returns the original error. The
// thread is never left Running behind a failed turn.
func (e *Executor) failTurn(ctx context.Context, snap *domain.ExecutionSnapshot, cause error) error {
	snap.Status = domain.ThreadStatusFailed
	snap.Resume = nil
	snap.PendingInterrupt = nil
	if err := e.persist(ctx, snap); err != nil {
		e.logger.Error("failed to persist failed thread", zap.String("thread_id", snap.ThreadID), zap.Error(err))
	}
	e.recordEvent(ctx, snap.ThreadID, domain.EventTypeTurnFailed, map[string]interface{}{"error": cause.Error()})
	return cause
}

func (e *Executor) persist(ctx context.Context, snap *domain.ExecutionSnapshot) error {
	snap.UpdatedAt = time.Now()
	if err := e.store.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

func (e *Executor) appendMessages(snap *domain.ExecutionSnapshot, msgs ...domain.Message) {
	for _, m := range msgs {
		if m.MessageID == "" {
			m.MessageID = "msg_" + uuid.New().String()[:8]
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		snap.Messages = append(snap.Messages, m)
	}
}

func (e *Executor) recordEvent(ctx context.Context, threadID string, eventType domain.EventType, payload interface{}) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to marshal event payload", zap.Error(err))
		return
	}

	event := domain.Event{
		EventID:  "evt_" + uuid.New().String()[:8],
		ThreadID: threadID,
		Ts:       time.Now().UnixMilli(),
		Type:     eventType,
		Payload:  payloadBytes,
	}

	if err := e.store.AppendEvent(ctx, &event); err != nil {
		e.logger.Error("failed to record event", zap.String("thread_id", threadID), zap.Error(err))
	}
	if e.sink != nil {
		e.sink.Publish(event)
	}
}

// normalizeHistory fills in defaults for caller-supplied seed messages.
func normalizeHistory(history []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == "" {
			m.Role = domain.RoleUser
		}
		if m.Origin == "" {
			m.Origin = domain.OriginUserInput
		}
		out = append(out, m)
	}
	return out
}
