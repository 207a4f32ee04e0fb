// SPDX-License-Identifier: Apache-2.0

package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runner is the scheduler's view of the execution coordinator.
type Runner interface {
	// Execute drives one execution to a terminal state.
	Execute(ctx context.Context, executionID string)
	// Runnable reports whether a queued execution is still eligible to
	// start (APPROVED and not cancelled while queued).
	Runnable(executionID string) bool
}

// Scheduler is a bounded-concurrency queue of approved executions. The
// poll loop is the only place that decides admission: it never starts
// more than the configured number of concurrent runs, and it does not
// dequeue while at capacity so queued items experience back-pressure
// rather than loss.
type Scheduler struct {
	runner       Runner
	queue        chan string
	sem          *semaphore.Weighted
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler with the given concurrency bound and
// queue capacity
func NewScheduler(runner Runner, maxConcurrent, queueSize int, pollInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:       runner,
		queue:        make(chan string, queueSize),
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
		pollInterval: pollInterval,
		logger:       logger,
		inFlight:     make(map[string]struct{}),
	}
}

// Start launches the poll loop
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)
}

// Stop halts the poll loop and waits for in-flight executions to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Submit enqueues an approved execution without blocking. A full queue
// is a submission error, not a silent drop.
func (s *Scheduler) Submit(executionID string) error {
	select {
	case s.queue <- executionID:
		return nil
	default:
		return fmt.Errorf("scheduler queue is full, cannot enqueue execution %s", executionID)
	}
}

// InFlight returns the number of currently running executions
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		// Acquire an execution slot before touching the queue: while at
		// capacity nothing is dequeued, which is the back-pressure the
		// queue relies on.
		if !s.sem.TryAcquire(1) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.sem.Release(1)
			return

		case executionID := <-s.queue:
			// An execution cancelled while queued is skipped in place,
			// never started.
			if !s.runner.Runnable(executionID) {
				s.logger.Debug("skipping non-runnable queued execution", "execution_id", executionID)
				s.sem.Release(1)
				continue
			}

			s.track(executionID)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.sem.Release(1)
				defer s.untrack(executionID)
				s.runner.Execute(ctx, executionID)
			}()

		case <-time.After(s.pollInterval):
			// Bounded wait with nothing queued; give the slot back
			s.sem.Release(1)
		}
	}
}

func (s *Scheduler) track(executionID string) {
	s.mu.Lock()
	s.inFlight[executionID] = struct{}{}
	s.mu.Unlock()
}

func (s *Scheduler) untrack(executionID string) {
	s.mu.Lock()
	delete(s.inFlight, executionID)
	s.mu.Unlock()
}
