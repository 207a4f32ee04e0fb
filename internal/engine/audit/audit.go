// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened at one point of an execution.
type EventType string

const (
	EventSubmitted         EventType = "SUBMITTED"
	EventStateChanged      EventType = "STATE_CHANGED"
	EventActionStarted     EventType = "ACTION_STARTED"
	EventActionSucceeded   EventType = "ACTION_SUCCEEDED"
	EventActionFailed      EventType = "ACTION_FAILED"
	EventRollbackStarted   EventType = "ROLLBACK_STARTED"
	EventRollbackSucceeded EventType = "ROLLBACK_SUCCEEDED"
	EventRollbackFailed    EventType = "ROLLBACK_FAILED"
	EventEscalated         EventType = "ESCALATED"
)

// Event is one immutable entry in an execution's trail.
type Event struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Type        EventType `json:"type"`
	Detail      string    `json:"detail"`
	At          time.Time `json:"at"`
}

// Trail is the append-only event log for executions. Events are
// appended exactly once and never mutated or removed; the trail, not a
// status snapshot, is the source of truth for what happened.
type Trail struct {
	mu     sync.Mutex
	events map[string][]Event
	logger *slog.Logger
}

// NewTrail creates an empty audit trail
func NewTrail(logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{
		events: make(map[string][]Event),
		logger: logger,
	}
}

// Append records one event for an execution and returns it
func (t *Trail) Append(executionID string, eventType EventType, detail string) Event {
	event := Event{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		Type:        eventType,
		Detail:      detail,
		At:          time.Now().UTC(),
	}

	t.mu.Lock()
	t.events[executionID] = append(t.events[executionID], event)
	t.mu.Unlock()

	t.logger.Info("audit event",
		"execution_id", executionID,
		"type", string(eventType),
		"detail", detail,
	)

	return event
}

// Events returns a copy of the trail for one execution, in append order
func (t *Trail) Events(executionID string) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	trail := t.events[executionID]
	result := make([]Event, len(trail))
	copy(result, trail)
	return result
}
