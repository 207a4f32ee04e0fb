// SPDX-License-Identifier: Apache-2.0

package escalate

import (
	"log/slog"
	"sync"
	"time"
)

// Timers schedules at most one delayed escalation per execution. A
// timer is explicitly cancellable, so an execution resolved before the
// delay elapses deterministically suppresses its escalation.
type Timers struct {
	delay  time.Duration
	fire   func(executionID string)
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	fired  map[string]bool
}

// NewTimers creates an escalation timer set. fire is invoked once per
// execution at most, after the delay, unless cancelled first.
func NewTimers(delay time.Duration, fire func(executionID string), logger *slog.Logger) *Timers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timers{
		delay:  delay,
		fire:   fire,
		logger: logger,
		timers: make(map[string]*time.Timer),
		fired:  make(map[string]bool),
	}
}

// Schedule arms the escalation timer for an execution. Scheduling an
// execution that already has a pending or fired timer is a no-op.
func (t *Timers) Schedule(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, pending := t.timers[executionID]; pending || t.fired[executionID] {
		return
	}

	t.timers[executionID] = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		delete(t.timers, executionID)
		t.fired[executionID] = true
		t.mu.Unlock()

		t.logger.Info("escalation timer elapsed", "execution_id", executionID)
		t.fire(executionID)
	})
}

// Cancel disarms a pending escalation. Safe to call for executions
// without a timer.
func (t *Timers) Cancel(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[executionID]; ok {
		timer.Stop()
		delete(t.timers, executionID)
	}
}

// Stop disarms every pending escalation
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
