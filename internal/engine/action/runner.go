// SPDX-License-Identifier: Apache-2.0

package action

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Result holds the uniform outcome of one action dispatch. A timeout is
// a failure, never an error that propagates to the submitter.
type Result struct {
	Success  bool
	TimedOut bool
	Output   string
	Detail   string
}

// CommandRunner executes a rendered command line through the shell with
// a context-bound timeout.
type CommandRunner struct {
	// shell is the interpreter used for command strings
	shell      string
	workingDir string
}

// NewCommandRunner creates a runner using /bin/sh
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{shell: "/bin/sh"}
}

// WithWorkingDir sets the working directory for executed commands
func (r *CommandRunner) WithWorkingDir(dir string) *CommandRunner {
	r.workingDir = dir
	return r
}

// Run executes the command and captures its combined output. Context
// cancellation or expiry kills the process and yields a timed-out
// failure result.
func (r *CommandRunner) Run(ctx context.Context, command string) Result {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}

	err := cmd.Run()

	result := Result{
		Success: err == nil,
		Output:  strings.TrimSpace(output.String()),
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		result.Success = false
		result.TimedOut = true
		result.Detail = "command timed out"
		return result
	}

	if err != nil {
		result.Detail = err.Error()
	}

	return result
}
