package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"querygraph/domain"
)

// MemoryStore implements Store in process memory, for single-process
// deployments and tests. Snapshots are copied on the way in and out so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*domain.ExecutionSnapshot
	events  map[string][]domain.Event
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*domain.ExecutionSnapshot),
		events:  make(map[string][]domain.Event),
	}
}

func copySnapshot(snap *domain.ExecutionSnapshot) *domain.ExecutionSnapshot {
	doc, _ := json.Marshal(snap)
	var out domain.ExecutionSnapshot
	_ = json.Unmarshal(doc, &out)
	return &out
}

// CreateSnapshot inserts a snapshot for a new thread.
func (s *MemoryStore) CreateSnapshot(_ context.Context, snap *domain.ExecutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[snap.ThreadID]; ok {
		return ErrAlreadyExists
	}
	s.threads[snap.ThreadID] = copySnapshot(snap)
	return nil
}

// PutSnapshot overwrites the snapshot for a thread.
func (s *MemoryStore) PutSnapshot(_ context.Context, snap *domain.ExecutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[snap.ThreadID] = copySnapshot(snap)
	return nil
}

// GetSnapshot retrieves a thread's snapshot, or (nil, nil) when unknown.
func (s *MemoryStore) GetSnapshot(_ context.Context, threadID string) (*domain.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	return copySnapshot(snap), nil
}

// ListThreads returns thread summaries, newest first.
func (s *MemoryStore) ListThreads(_ context.Context, status domain.ThreadStatus, limit int) ([]domain.ThreadSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var threads []domain.ThreadSummary
	for _, snap := range s.threads {
		if status != "" && snap.Status != status {
			continue
		}
		threads = append(threads, domain.ThreadSummary{
			ThreadID:  snap.ThreadID,
			Status:    snap.Status,
			Messages:  len(snap.Messages),
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	if len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

// ListSuspendedBefore returns ids of threads suspended since before the
// cutoff, oldest first.
func (s *MemoryStore) ListSuspendedBefore(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		id string
		at time.Time
	}
	var expired []entry
	for _, snap := range s.threads {
		if snap.Status == domain.ThreadStatusSuspended && snap.UpdatedAt.Before(cutoff) {
			expired = append(expired, entry{id: snap.ThreadID, at: snap.UpdatedAt})
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].at.Before(expired[j].at) })
	if len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]string, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.id)
	}
	return ids, nil
}

// AppendEvent records a step event.
func (s *MemoryStore) AppendEvent(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ThreadID] = append(s.events[event.ThreadID], *event)
	return nil
}

// GetEvents returns events for a thread after the given timestamp.
func (s *MemoryStore) GetEvents(_ context.Context, threadID string, afterTs int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []domain.Event
	for _, e := range s.events[threadID] {
		if e.Ts > afterTs {
			events = append(events, e)
		}
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
