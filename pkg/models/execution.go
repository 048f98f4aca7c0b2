package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusWaitingForInput ExecutionStatus = "waiting_for_input"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusError           ExecutionStatus = "error"
)

// Terminal reports whether no further transitions are permitted.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusError
}

// CanTransitionTo enforces the execution state machine: running may suspend,
// complete, or fail; waiting_for_input may only resume to running or fail;
// terminal states admit nothing.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusRunning:
		return next == ExecutionStatusWaitingForInput ||
			next == ExecutionStatusCompleted ||
			next == ExecutionStatusError
	case ExecutionStatusWaitingForInput:
		return next == ExecutionStatusRunning || next == ExecutionStatusError
	default:
		return false
	}
}

// Execution data keys under which node outputs are merged.
const (
	DataKeyActionResult      = "actionResult"
	DataKeyIntegrationResult = "integrationResult"
	DataKeyContextResult     = "contextResult"
	DataKeyInput             = "input"
)

// WorkflowExecution is one run of a workflow for a specific user and
// conversation. It is created by the engine when a run is launched and mutated
// exclusively by the engine as the run advances or suspends.
type WorkflowExecution struct {
	ID                  string          `json:"id"`
	WorkflowID          string          `json:"workflow_id"`
	ChatbotID           string          `json:"chatbot_id"`
	UserID              string          `json:"user_id"`
	ConversationID      string          `json:"conversation_id"`
	CurrentNodeID       string          `json:"current_node_id"`
	Status              ExecutionStatus `json:"status"`
	WaitingForInputType string          `json:"waiting_for_input_type,omitempty"`
	WaitingSince        *time.Time      `json:"waiting_since,omitempty"`
	Data                map[string]any  `json:"data"`
	StartedAt           time.Time       `json:"started_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	Error               string          `json:"error,omitempty"`
}

// MergeData stores a node output under its well-known key. The data store is
// merge-only: unrelated keys are never touched.
func (e *WorkflowExecution) MergeData(key string, value any) {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}

	e.Data[key] = value
}

// MergeInput merges user input under the "input" key. When both the existing
// and the incoming values are maps, individual fields are merged so repeated
// input rounds accumulate rather than replace each other.
func (e *WorkflowExecution) MergeInput(input map[string]any) {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}

	existing, ok := e.Data[DataKeyInput].(map[string]any)
	if !ok {
		merged := make(map[string]any, len(input))
		for k, v := range input {
			merged[k] = v
		}

		e.Data[DataKeyInput] = merged

		return
	}

	for k, v := range input {
		existing[k] = v
	}
}
