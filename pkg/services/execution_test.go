package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/services"
)

func TestExecutionService_StartAndResume(t *testing.T) {
	workflows, executions, _ := setupServices(t)

	created, err := workflows.Create(t.Context(), sampleWorkflow())
	require.NoError(t, err)

	started, err := executions.Start(t.Context(), services.StartExecutionRequest{
		ChatbotID:      "bot-1",
		WorkflowID:     created.ID,
		UserID:         "user-1",
		ConversationID: "conv-1",
		InitialData:    map[string]any{"channel": "web"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaitingForInput, started.Execution.Status)
	require.NotNil(t, started.Prompt)
	assert.Equal(t, "How can I help?", started.Prompt.Prompt)

	// The message pipeline can find the suspended execution by conversation.
	waiting, err := executions.FindWaiting(t.Context(), "bot-1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, started.Execution.ID, waiting.ID)

	resumed, err := executions.ProcessUserInput(t.Context(), started.Execution.ID, map[string]any{"text": "order status"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Execution.Status)
	require.Len(t, resumed.Messages, 1)
	assert.Equal(t, "Thanks!", resumed.Messages[0].Message)

	_, err = executions.FindWaiting(t.Context(), "bot-1", "conv-1")
	assert.True(t, services.IsNotFoundError(err))
}

func TestExecutionService_ResumeCompletedIsStateError(t *testing.T) {
	workflows, executions, _ := setupServices(t)

	created, err := workflows.Create(t.Context(), sampleWorkflow())
	require.NoError(t, err)

	started, err := executions.Start(t.Context(), services.StartExecutionRequest{
		ChatbotID: "bot-1", WorkflowID: created.ID, UserID: "user-1", ConversationID: "conv-1",
	})
	require.NoError(t, err)

	_, err = executions.ProcessUserInput(t.Context(), started.Execution.ID, map[string]any{"text": "hi"})
	require.NoError(t, err)

	_, err = executions.ProcessUserInput(t.Context(), started.Execution.ID, map[string]any{"text": "again"})
	require.Error(t, err)
	assert.True(t, services.IsStateError(err))
}

func TestExecutionService_StartValidation(t *testing.T) {
	_, executions, _ := setupServices(t)

	_, err := executions.Start(t.Context(), services.StartExecutionRequest{})
	assert.ErrorIs(t, err, services.ErrInvalidRequest)
}

func TestExecutionService_StartInactiveWorkflow(t *testing.T) {
	workflows, executions, _ := setupServices(t)

	wf := sampleWorkflow()
	wf.IsActive = false

	created, err := workflows.Create(t.Context(), wf)
	require.NoError(t, err)

	_, err = executions.Start(t.Context(), services.StartExecutionRequest{
		ChatbotID: "bot-1", WorkflowID: created.ID, UserID: "user-1", ConversationID: "conv-1",
	})
	require.Error(t, err)
	assert.True(t, services.IsStateError(err))
}

func TestExecutionService_ListAndAnalytics(t *testing.T) {
	workflows, executions, _ := setupServices(t)

	created, err := workflows.Create(t.Context(), sampleWorkflow())
	require.NoError(t, err)

	for i := range 2 {
		started, err := executions.Start(t.Context(), services.StartExecutionRequest{
			ChatbotID: "bot-1", WorkflowID: created.ID, UserID: "user-1",
			ConversationID: "conv-" + string(rune('a'+i)),
		})
		require.NoError(t, err)

		_, err = executions.ProcessUserInput(t.Context(), started.Execution.ID, map[string]any{"text": "done"})
		require.NoError(t, err)
	}

	listed, err := executions.List(t.Context(), "bot-1", created.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	stats, err := executions.Analytics(t.Context(), "bot-1", created.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.InEpsilon(t, 100.0, stats.CompletionRate, 1e-9)
}

func TestExecutionService_AnalyticsUnknownWorkflow(t *testing.T) {
	_, executions, _ := setupServices(t)

	_, err := executions.Analytics(t.Context(), "bot-1", "missing", nil, nil)
	assert.True(t, services.IsNotFoundError(err))
}
