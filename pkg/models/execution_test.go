package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    ExecutionStatus
		to      ExecutionStatus
		allowed bool
	}{
		{"running suspends", ExecutionStatusRunning, ExecutionStatusWaitingForInput, true},
		{"running completes", ExecutionStatusRunning, ExecutionStatusCompleted, true},
		{"running fails", ExecutionStatusRunning, ExecutionStatusError, true},
		{"waiting resumes", ExecutionStatusWaitingForInput, ExecutionStatusRunning, true},
		{"waiting fails", ExecutionStatusWaitingForInput, ExecutionStatusError, true},
		{"waiting cannot complete directly", ExecutionStatusWaitingForInput, ExecutionStatusCompleted, false},
		{"completed is terminal", ExecutionStatusCompleted, ExecutionStatusRunning, false},
		{"error is terminal", ExecutionStatusError, ExecutionStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestExecutionStatus_Terminal(t *testing.T) {
	assert.False(t, ExecutionStatusRunning.Terminal())
	assert.False(t, ExecutionStatusWaitingForInput.Terminal())
	assert.True(t, ExecutionStatusCompleted.Terminal())
	assert.True(t, ExecutionStatusError.Terminal())
}

func TestWorkflowExecution_MergeData_PreservesUnrelatedKeys(t *testing.T) {
	execution := &WorkflowExecution{
		Data: map[string]any{"score": 10, DataKeyActionResult: map[string]any{"success": true}},
	}

	execution.MergeData(DataKeyIntegrationResult, map[string]any{"success": false})

	assert.Equal(t, 10, execution.Data["score"])
	assert.Equal(t, map[string]any{"success": true}, execution.Data[DataKeyActionResult])
	assert.Equal(t, map[string]any{"success": false}, execution.Data[DataKeyIntegrationResult])
}

func TestWorkflowExecution_MergeInput_AccumulatesRounds(t *testing.T) {
	execution := &WorkflowExecution{}

	execution.MergeInput(map[string]any{"name": "Ada"})
	execution.MergeInput(map[string]any{"email": "ada@example.com"})

	input, ok := execution.Data[DataKeyInput].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "Ada", input["name"])
	assert.Equal(t, "ada@example.com", input["email"])
}
