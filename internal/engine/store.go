// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"sync"

	"github.com/opsdeck/remedy/internal/core/models"
)

// executionRecord is the engine-owned state of one execution. It is
// only ever touched under the store's lock; components see copies.
type executionRecord struct {
	execution  models.RemediationExecution
	plan       models.RemediationPlan
	assessment models.RiskAssessment

	// cancelRequested is the cooperative cancellation flag, observed by
	// the coordinator at action boundaries only.
	cancelRequested bool
}

// executionStore is the single owner of execution records. External
// readers get snapshots and must tolerate seeing an execution
// mid-transition; the audit trail, not a snapshot, is authoritative.
type executionStore struct {
	mu      sync.RWMutex
	records map[string]*executionRecord
	order   []string
}

func newExecutionStore() *executionStore {
	return &executionStore{records: make(map[string]*executionRecord)}
}

func (s *executionStore) create(record *executionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.execution.ID] = record
	s.order = append(s.order, record.execution.ID)
}

// mutate runs fn on the record under the store lock. fn errors pass
// through unchanged so callers can enforce state preconditions
// atomically with their updates.
func (s *executionStore) mutate(id string, fn func(*executionRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return fn(record)
}

// snapshot returns a deep copy of one execution
func (s *executionStore) snapshot(id string) (models.RemediationExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return models.RemediationExecution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return copyExecution(record.execution), nil
}

func (s *executionStore) status(id string) (models.ExecutionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return record.execution.Status, nil
}

func (s *executionStore) plan(id string) (models.RemediationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return models.RemediationPlan{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return record.plan, nil
}

func (s *executionStore) assessment(id string) (models.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return models.RiskAssessment{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	return record.assessment, nil
}

func (s *executionStore) cancelRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	return ok && record.cancelRequested
}

// list returns snapshots in submission order, optionally filtered by
// status, capped at limit (0 means no cap)
func (s *executionStore) list(filter models.ExecutionStatus, limit int) []models.RemediationExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.RemediationExecution
	for _, id := range s.order {
		record := s.records[id]
		if filter != "" && record.execution.Status != filter {
			continue
		}
		result = append(result, copyExecution(record.execution))
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result
}

func copyExecution(execution models.RemediationExecution) models.RemediationExecution {
	snapshot := execution
	snapshot.ExecutedActions = append([]string(nil), execution.ExecutedActions...)
	snapshot.FailedActions = append([]string(nil), execution.FailedActions...)
	snapshot.RollbackActions = append([]string(nil), execution.RollbackActions...)
	snapshot.Log = append([]string(nil), execution.Log...)
	if execution.Context != nil {
		snapshot.Context = make(map[string]interface{}, len(execution.Context))
		for k, v := range execution.Context {
			snapshot.Context[k] = v
		}
	}
	return snapshot
}
