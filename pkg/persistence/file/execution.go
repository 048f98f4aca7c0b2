package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
)

// ExecutionRepository stores workflow executions as JSON files.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	data, err := os.ReadFile(filepath.Join(er.dir(), id+".json")) // #nosec G304 -- id is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.WorkflowExecution

	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("failed to decode execution: %w", err))
	}

	return &execution, nil
}

func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if execution.Data == nil {
		execution.Data = make(map[string]any)
	}

	if err := os.MkdirAll(er.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to encode execution: %w", err))
	}

	path := filepath.Join(er.dir(), execution.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) FindByWorkflow(ctx context.Context, workflowID, chatbotID string) ([]*models.WorkflowExecution, error) {
	return er.scan(func(execution *models.WorkflowExecution) bool {
		return execution.WorkflowID == workflowID && execution.ChatbotID == chatbotID
	})
}

func (er *ExecutionRepository) FindActiveByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return er.scan(func(execution *models.WorkflowExecution) bool {
		return execution.WorkflowID == workflowID && !execution.Status.Terminal()
	})
}

func (er *ExecutionRepository) FindWaitingByConversation(ctx context.Context, chatbotID, conversationID string) (*models.WorkflowExecution, error) {
	matches, err := er.scan(func(execution *models.WorkflowExecution) bool {
		return execution.ChatbotID == chatbotID &&
			execution.ConversationID == conversationID &&
			execution.Status == models.ExecutionStatusWaitingForInput
	})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, persistence.NewExecutionError("FindWaitingByConversation", conversationID, persistence.ErrExecutionNotFound)
	}

	return matches[0], nil
}

func (er *ExecutionRepository) FindExpiredWaiting(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error) {
	return er.scan(func(execution *models.WorkflowExecution) bool {
		if execution.Status != models.ExecutionStatusWaitingForInput {
			return false
		}

		// Expiry is measured from when the current wait began. Records
		// written before waiting_since existed fall back to started_at.
		waitingSince := execution.StartedAt
		if execution.WaitingSince != nil {
			waitingSince = *execution.WaitingSince
		}

		return waitingSince.Before(cutoff)
	})
}

func (er *ExecutionRepository) scan(match func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	entries, err := os.ReadDir(er.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.WorkflowExecution{}, nil
		}

		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(er.dir(), entry.Name())) // #nosec G304 -- directory listing
		if err != nil {
			return nil, fmt.Errorf("failed to read execution file %s: %w", entry.Name(), err)
		}

		var execution models.WorkflowExecution

		if err := json.Unmarshal(data, &execution); err != nil {
			return nil, fmt.Errorf("failed to decode execution file %s: %w", entry.Name(), err)
		}

		if match(&execution) {
			executions = append(executions, &execution)
		}
	}

	return executions, nil
}
