package workflow_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence/file"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

func TestJanitor_Reap(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now().UTC()
	staleMark := now.Add(-48 * time.Hour)

	stale := &models.WorkflowExecution{
		ID: "exec-stale", WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-old",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingForInputType: "text",
		WaitingSince:        &staleMark,
		StartedAt:           staleMark,
	}
	fresh := &models.WorkflowExecution{
		ID: "exec-fresh", WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-new",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingSince: &now,
		StartedAt:    now,
	}
	// Old conversation, but the user replied recently and it suspended again.
	multiturn := &models.WorkflowExecution{
		ID: "exec-multiturn", WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-multi",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingSince: &now,
		StartedAt:    staleMark,
	}
	running := &models.WorkflowExecution{
		ID: "exec-running", WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-run",
		CurrentNodeID: "act", Status: models.ExecutionStatusRunning,
		StartedAt: staleMark,
	}

	for _, execution := range []*models.WorkflowExecution{stale, fresh, multiturn, running} {
		require.NoError(t, p.ExecutionRepository().Save(t.Context(), execution))
	}

	janitor := workflow.NewJanitor(logger, p.ExecutionRepository(), nil, 24*time.Hour)
	janitor.Reap(t.Context())

	expired, err := p.ExecutionRepository().GetByID(t.Context(), "exec-stale")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusError, expired.Status)
	assert.Equal(t, "input wait expired", expired.Error)
	assert.Empty(t, expired.WaitingForInputType)
	assert.Nil(t, expired.WaitingSince)
	require.NotNil(t, expired.CompletedAt)

	untouched, err := p.ExecutionRepository().GetByID(t.Context(), "exec-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingForInput, untouched.Status)

	// Expiry is measured from the current wait, not from execution start.
	stillTalking, err := p.ExecutionRepository().GetByID(t.Context(), "exec-multiturn")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingForInput, stillTalking.Status)

	// Long-running executions are not the janitor's business.
	stillRunning, err := p.ExecutionRepository().GetByID(t.Context(), "exec-running")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stillRunning.Status)
}

func TestJanitor_ReapSparesFreshWaitOnOldExecution(t *testing.T) {
	engine, p := newTestEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	wf := linearWorkflow("wf-multi", []*models.Node{
		{ID: "start", Type: models.NodeTypeStart, Data: models.StartData{}},
		{ID: "ask-name", Type: models.NodeTypeInput, Data: models.InputData{Prompt: "Name?"}},
		{ID: "ask-order", Type: models.NodeTypeInput, Data: models.InputData{Prompt: "Order?"}},
		{ID: "end", Type: models.NodeTypeEnd, Data: models.EndData{}},
	})
	saveWorkflow(t, p, wf)

	started, err := engine.Start(t.Context(), "bot-1", "wf-multi", "user-1", "conv-1", nil)
	require.NoError(t, err)
	require.NotNil(t, started.Execution.WaitingSince)

	// Backdate the conversation itself; the user kept replying all along.
	started.Execution.StartedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, p.ExecutionRepository().Save(t.Context(), started.Execution))

	resumed, err := engine.Resume(t.Context(), started.Execution.ID, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaitingForInput, resumed.Execution.Status)

	janitor := workflow.NewJanitor(logger, p.ExecutionRepository(), nil, 24*time.Hour)
	janitor.Reap(t.Context())

	stored, err := p.ExecutionRepository().GetByID(t.Context(), started.Execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingForInput, stored.Status)

	// The conversation is still resumable to completion.
	final, err := engine.Resume(t.Context(), started.Execution.ID, map[string]any{"order": "A-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Execution.Status)
	assert.Nil(t, final.Execution.WaitingSince)
}
