package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskRunner runs fire-and-forget work off the request path.
// Failures are logged, never returned.
type TaskRunner struct {
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewTaskRunner(log *zap.Logger, timeout time.Duration) *TaskRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TaskRunner{log: log.Named("tasks"), timeout: timeout}
}

// Go starts fn with a context detached from the caller's cancellation.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every started task has returned.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
