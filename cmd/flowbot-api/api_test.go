package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-io/flowbot/pkg/lock"
	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence/file"
	"github.com/flowbot-io/flowbot/pkg/tracer"
)

func setupTestApp(tempDir string) *fiber.App {
	persistence := file.NewPersistence(tempDir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	api := NewAPI(
		logger,
		persistence,
		nil,
		lock.NewMemoryLocker(),
		tracer.NewNoopTracer(),
		5*time.Second,
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Flowbot API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_HealthEndpoint(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any

	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/chatbots/bot-1/workflows", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var response struct {
		Workflows []models.Workflow `json:"workflows"`
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)
	assert.Empty(t, response.Workflows)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodOptions, "/chatbots/bot-1/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Integration_ConversationLifecycle(t *testing.T) {
	app := setupTestApp(t.TempDir())

	create := map[string]any{
		"name":       "Order Lookup",
		"is_active":  true,
		"created_by": "test-user",
		"nodes": []map[string]any{
			{"node_id": "start", "type": "start", "data": map[string]any{}},
			{"node_id": "ask", "type": "input", "data": map[string]any{"prompt": "Order number?"}},
			{"node_id": "confirm", "type": "message", "data": map[string]any{"message": "Looking up ${input.order}"}},
			{"node_id": "end", "type": "end", "data": map[string]any{}},
		},
		"connections": []map[string]any{
			{"source_id": "start", "target_id": "ask"},
			{"source_id": "ask", "target_id": "confirm"},
			{"source_id": "confirm", "target_id": "end"},
		},
	}

	body, err := json.Marshal(create)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chatbots/bot-1/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow

	err = json.NewDecoder(resp.Body).Decode(&created)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	start, err := json.Marshal(map[string]any{
		"user_id":         "user-7",
		"conversation_id": "conv-7",
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/chatbots/bot-1/workflows/"+created.ID+"/executions", bytes.NewBuffer(start))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var started struct {
		Execution models.WorkflowExecution `json:"execution"`
		Prompt    *struct {
			Prompt string `json:"prompt"`
		} `json:"prompt"`
	}

	err = json.NewDecoder(resp.Body).Decode(&started)
	require.NoError(t, err)
	require.NotNil(t, started.Prompt)
	assert.Equal(t, "Order number?", started.Prompt.Prompt)

	input, err := json.Marshal(map[string]any{
		"input": map[string]any{"order": "A-1234"},
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/executions/"+started.Execution.ID+"/input", bytes.NewBuffer(input))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resumed struct {
		Execution models.WorkflowExecution `json:"execution"`
		Messages  []struct {
			Message string `json:"message"`
		} `json:"messages"`
	}

	err = json.NewDecoder(resp.Body).Decode(&resumed)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Execution.Status)
	require.Len(t, resumed.Messages, 1)
	assert.Equal(t, "Looking up A-1234", resumed.Messages[0].Message)
}
