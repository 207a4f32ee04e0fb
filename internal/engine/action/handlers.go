// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opsdeck/remedy/internal/core/models"
)

// Handler executes the rendered command of one action type. Handlers
// return a uniform Result and must never let a timeout escape as an
// error.
type Handler interface {
	Type() models.ActionType
	Run(ctx context.Context, command string) Result
}

// ShellHandler runs arbitrary shell command actions.
type ShellHandler struct {
	runner *CommandRunner
}

// NewShellHandler creates the shell_command handler
func NewShellHandler(runner *CommandRunner) *ShellHandler {
	return &ShellHandler{runner: runner}
}

func (h *ShellHandler) Type() models.ActionType { return models.ActionShell }

func (h *ShellHandler) Run(ctx context.Context, command string) Result {
	return h.runner.Run(ctx, command)
}

// CLIToolHandler runs actions that must invoke one specific binary
// (the orchestrator CLI or the infra-as-code tool). A command that does
// not start with the expected binary is rejected before execution.
type CLIToolHandler struct {
	actionType models.ActionType
	binary     string
	runner     *CommandRunner
}

// NewOrchestratorHandler creates the orchestrator_cli handler
// (kubectl by default)
func NewOrchestratorHandler(runner *CommandRunner, binary string) *CLIToolHandler {
	if binary == "" {
		binary = "kubectl"
	}
	return &CLIToolHandler{actionType: models.ActionOrchestrator, binary: binary, runner: runner}
}

// NewInfraHandler creates the infra_as_code handler (terraform by default)
func NewInfraHandler(runner *CommandRunner, binary string) *CLIToolHandler {
	if binary == "" {
		binary = "terraform"
	}
	return &CLIToolHandler{actionType: models.ActionInfraAsCode, binary: binary, runner: runner}
}

func (h *CLIToolHandler) Type() models.ActionType { return h.actionType }

func (h *CLIToolHandler) Run(ctx context.Context, command string) Result {
	fields := strings.Fields(command)
	if len(fields) == 0 || fields[0] != h.binary {
		return Result{
			Success: false,
			Detail:  fmt.Sprintf("%s actions must invoke %q, got %q", h.actionType, h.binary, command),
		}
	}

	return h.runner.Run(ctx, command)
}

// APICallHandler performs generic HTTP call actions. The rendered
// command is "METHOD URL" with an optional request body after the URL.
type APICallHandler struct {
	client *http.Client
}

// NewAPICallHandler creates the api_call handler. A nil client uses
// http.DefaultClient; per-action timeouts come from the context.
func NewAPICallHandler(client *http.Client) *APICallHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &APICallHandler{client: client}
}

func (h *APICallHandler) Type() models.ActionType { return models.ActionAPICall }

func (h *APICallHandler) Run(ctx context.Context, command string) Result {
	fields := strings.SplitN(strings.TrimSpace(command), " ", 3)
	if len(fields) < 2 {
		return Result{
			Success: false,
			Detail:  fmt.Sprintf("api_call command must be \"METHOD URL [body]\", got %q", command),
		}
	}

	method := strings.ToUpper(fields[0])
	url := fields[1]

	var body io.Reader
	if len(fields) == 3 {
		body = strings.NewReader(fields[2])
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Result{Success: false, Detail: fmt.Sprintf("invalid request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		result := Result{Success: false, Detail: err.Error()}
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.Detail = "api call timed out"
		}
		return result
	}
	defer resp.Body.Close()

	// Cap captured output; responses can be arbitrarily large
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	result := Result{
		Success: resp.StatusCode < 400,
		Output:  strings.TrimSpace(string(payload)),
	}
	if !result.Success {
		result.Detail = fmt.Sprintf("api call returned status %d", resp.StatusCode)
	}

	return result
}
