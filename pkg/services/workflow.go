package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

// Workflow provides workflow CRUD with graph validation and a deletion guard
// against active executions.
type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewWorkflow(p persistence.Persistence, v *validator.Validate, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: p,
		validator:   v,
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and persists a new workflow.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := w.validate(wf); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", wf.ID, "chatbot_id", wf.ChatbotID)

	return wf, nil
}

// UpdateWorkflowRequest carries a partial update. Nil fields are unchanged.
type UpdateWorkflowRequest struct {
	Name        *string
	Description *string
	IsActive    *bool
	Nodes       []*models.Node
	Connections []*models.Connection
}

// Update applies a partial update and revalidates the graph when the node or
// connection set changed.
func (w *Workflow) Update(ctx context.Context, chatbotID, workflowID string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, chatbotID, workflowID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}

	if req.Nodes != nil {
		wf.Nodes = req.Nodes
	}

	if req.Connections != nil {
		wf.Connections = req.Connections
	}

	wf.UpdatedAt = time.Now().UTC()

	if err := w.validate(wf); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow updated", "workflow_id", wf.ID, "chatbot_id", chatbotID)

	return wf, nil
}

// Delete removes a workflow unless it still has running or suspended
// executions. Suspended executions eventually expire via the janitor, so the
// guard cannot block deletion forever.
func (w *Workflow) Delete(ctx context.Context, chatbotID, workflowID string) error {
	if _, err := w.persistence.WorkflowRepository().GetByID(ctx, chatbotID, workflowID); err != nil {
		return err
	}

	active, err := w.persistence.ExecutionRepository().FindActiveByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to check active executions: %w", err)
	}

	if len(active) > 0 {
		return fmt.Errorf("%w: %d active", ErrWorkflowHasActiveExecutions, len(active))
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, chatbotID, workflowID); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", workflowID, "chatbot_id", chatbotID)

	return nil
}

// Get fetches a single workflow scoped to its chatbot.
func (w *Workflow) Get(ctx context.Context, chatbotID, workflowID string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, chatbotID, workflowID)
}

// List returns all workflows of a chatbot.
func (w *Workflow) List(ctx context.Context, chatbotID string) ([]*models.Workflow, error) {
	if chatbotID == "" {
		return nil, ErrChatbotIDRequired
	}

	return w.persistence.WorkflowRepository().ListByChatbot(ctx, chatbotID)
}

func (w *Workflow) validate(wf *models.Workflow) error {
	if wf.ChatbotID == "" {
		return ErrChatbotIDRequired
	}

	if len(wf.Nodes) == 0 {
		return ErrNodesRequired
	}

	if err := w.validator.Struct(wf); err != nil {
		return NewValidationError("validate", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	return workflow.Validate(wf)
}
