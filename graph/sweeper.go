package graph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"querygraph/store"
)

// ExpirySweeper fails threads whose pending interrupt outlived its TTL.
// The core owns no timers; the server chooses whether to run this at all.
type ExpirySweeper struct {
	store    store.Store
	executor *Executor
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper that expires interrupts older than ttl.
func NewExpirySweeper(st store.Store, executor *Executor, ttl time.Duration, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		store:    st,
		executor: executor,
		ttl:      ttl,
		interval: 30 * time.Second,
		logger:   logger,
	}
}

// Run loops until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	expired, err := s.store.ListSuspendedBefore(sweepCtx, time.Now().Add(-s.ttl), 100)
	if err != nil {
		s.logger.Warn("interrupt expiry sweep failed", zap.Error(err))
		return
	}

	for _, threadID := range expired {
		if err := s.executor.ExpireInterrupt(sweepCtx, threadID); err != nil {
			s.logger.Warn("failed to expire interrupt", zap.String("thread_id", threadID), zap.Error(err))
			continue
		}
		s.logger.Info("expired pending interrupt", zap.String("thread_id", threadID))
	}
}
