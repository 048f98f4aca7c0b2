package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
)

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	root string
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// validateID guards file path construction against traversal.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, chatbotID, id string) (*models.Workflow, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, err)
	}

	data, err := os.ReadFile(filepath.Join(wr.dir(), id+".json")) // #nosec G304 -- id is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, err)
	}

	var workflow models.Workflow

	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, fmt.Errorf("failed to decode workflow: %w", err))
	}

	// Cross-chatbot lookups behave as not found.
	if workflow.ChatbotID != chatbotID {
		return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) ListByChatbot(ctx context.Context, chatbotID string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(wr.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Workflow{}, nil
		}

		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	workflows := make([]*models.Workflow, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(wr.dir(), entry.Name())) // #nosec G304 -- directory listing
		if err != nil {
			return nil, fmt.Errorf("failed to read workflow file %s: %w", entry.Name(), err)
		}

		var workflow models.Workflow

		if err := json.Unmarshal(data, &workflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow file %s: %w", entry.Name(), err)
		}

		if workflow.ChatbotID == chatbotID {
			workflows = append(workflows, &workflow)
		}
	}

	return workflows, nil
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, err)
	}

	if err := os.MkdirAll(wr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, fmt.Errorf("failed to encode workflow: %w", err))
	}

	path := filepath.Join(wr.dir(), workflow.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(ctx context.Context, chatbotID, id string) error {
	// GetByID both validates the id and enforces chatbot scoping.
	if _, err := wr.GetByID(ctx, chatbotID, id); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(wr.dir(), id+".json")); err != nil {
		return persistence.NewWorkflowError("Delete", chatbotID, id, err)
	}

	return nil
}
