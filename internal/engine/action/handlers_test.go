// SPDX-License-Identifier: Apache-2.0

package action_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdeck/remedy/internal/core/models"
	"github.com/opsdeck/remedy/internal/engine/action"
)

func TestCLIToolHandlerRejectsForeignBinary(t *testing.T) {
	runner := action.NewCommandRunner()
	handler := action.NewOrchestratorHandler(runner, "kubectl")

	result := handler.Run(context.Background(), "rm -rf /data")
	assert.False(t, result.Success)
	assert.Contains(t, result.Detail, "kubectl")

	result = handler.Run(context.Background(), "")
	assert.False(t, result.Success)
}

func TestCLIToolHandlerRunsExpectedBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	runner := action.NewCommandRunner()
	// Use echo as the "orchestrator" so the test has no external deps
	handler := action.NewOrchestratorHandler(runner, "echo")

	result := handler.Run(context.Background(), "echo scale deployment api")
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "scale deployment api")
}

func TestInfraHandlerDefaultBinary(t *testing.T) {
	handler := action.NewInfraHandler(action.NewCommandRunner(), "")
	assert.Equal(t, models.ActionInfraAsCode, handler.Type())

	result := handler.Run(context.Background(), "kubectl get pods")
	assert.False(t, result.Success, "infra handler defaults to terraform")
}

func TestAPICallHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"status":"healthy"}`))
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		case "/echo-method":
			w.Write([]byte(r.Method))
		}
	}))
	defer server.Close()

	handler := action.NewAPICallHandler(server.Client())

	t.Run("successful GET", func(t *testing.T) {
		result := handler.Run(context.Background(), "GET "+server.URL+"/ok")
		assert.True(t, result.Success)
		assert.Contains(t, result.Output, "healthy")
	})

	t.Run("5xx is a failure", func(t *testing.T) {
		result := handler.Run(context.Background(), "GET "+server.URL+"/fail")
		assert.False(t, result.Success)
		assert.Contains(t, result.Detail, "500")
	})

	t.Run("POST with body", func(t *testing.T) {
		result := handler.Run(context.Background(), "POST "+server.URL+`/echo-method {"force":true}`)
		assert.True(t, result.Success)
		assert.Equal(t, "POST", result.Output)
	})

	t.Run("malformed command", func(t *testing.T) {
		result := handler.Run(context.Background(), "justoneword")
		assert.False(t, result.Success)
		assert.Contains(t, result.Detail, "METHOD URL")
	})
}
