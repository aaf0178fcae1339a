// Package store defines the thread store interface and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"querygraph/domain"
)

// ErrAlreadyExists is returned by CreateSnapshot when the thread exists.
var ErrAlreadyExists = errors.New("thread already exists")

// Store is the durable mapping from thread id to its latest execution
// snapshot, plus the per-thread step-event log. Get returns (nil, nil)
// for an unknown thread.
type Store interface {
	// Snapshot operations
	CreateSnapshot(ctx context.Context, snap *domain.ExecutionSnapshot) error
	PutSnapshot(ctx context.Context, snap *domain.ExecutionSnapshot) error
	GetSnapshot(ctx context.Context, threadID string) (*domain.ExecutionSnapshot, error)

	// Thread listing
	ListThreads(ctx context.Context, status domain.ThreadStatus, limit int) ([]domain.ThreadSummary, error)
	ListSuspendedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// Event operations
	AppendEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, threadID string, afterTs int64, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
