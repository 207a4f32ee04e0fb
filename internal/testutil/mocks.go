// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/action"
	"github.com/opsdeck/remedy/internal/notify"
)

// MockHandler provides a mock implementation of the action.Handler
// interface for dispatcher and coordinator tests
type MockHandler struct {
	mock.Mock
	ActionType models.ActionType
}

// Type returns the handler's action type
func (m *MockHandler) Type() models.ActionType {
	return m.ActionType
}

// Run mocks command execution
func (m *MockHandler) Run(ctx context.Context, command string) action.Result {
	args := m.Called(ctx, command)
	return args.Get(0).(action.Result)
}

// MockNotifier provides a mock implementation of the notify.Notifier
// interface
type MockNotifier struct {
	mock.Mock
}

// SendAlert mocks alert delivery
func (m *MockNotifier) SendAlert(ctx context.Context, alert notify.Alert) error {
	// If expectations are set, use those
	if len(m.Mock.ExpectedCalls) > 0 {
		args := m.Called(ctx, alert)
		return args.Error(0)
	}

	// Otherwise, behave like a silently-succeeding channel
	return nil
}

// SendRemediationResult mocks result delivery
func (m *MockNotifier) SendRemediationResult(ctx context.Context, execution models.RemediationExecution, planTitle string) error {
	if len(m.Mock.ExpectedCalls) > 0 {
		args := m.Called(ctx, execution, planTitle)
		return args.Error(0)
	}

	return nil
}

// MockCommentary provides a mock implementation of the
// risk.CommentaryGenerator interface
type MockCommentary struct {
	mock.Mock
}

// Generate mocks commentary generation
func (m *MockCommentary) Generate(ctx context.Context, plan models.RemediationPlan, execContext map[string]interface{}) (string, error) {
	args := m.Called(ctx, plan, execContext)
	return args.String(0), args.Error(1)
}
