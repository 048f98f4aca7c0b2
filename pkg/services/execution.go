package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/workflow"
)

// Execution exposes the engine's launch, resume, and analytics operations to
// the API and the message pipeline.
type Execution struct {
	engine      *workflow.Engine
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewExecution(engine *workflow.Engine, p persistence.Persistence, logger *slog.Logger) *Execution {
	return &Execution{
		engine:      engine,
		persistence: p,
		logger:      logger.With("module", "execution_service"),
	}
}

// StartExecutionRequest identifies which workflow to run and for whom.
type StartExecutionRequest struct {
	ChatbotID      string         `validate:"required"`
	WorkflowID     string         `validate:"required"`
	UserID         string         `validate:"required"`
	ConversationID string         `validate:"required"`
	InitialData    map[string]any `validate:"-"`
}

// Start launches a new execution and advances it to its first stopping point.
func (e *Execution) Start(ctx context.Context, req StartExecutionRequest) (*workflow.AdvanceResult, error) {
	if req.ChatbotID == "" || req.WorkflowID == "" {
		return nil, ErrInvalidRequest
	}

	return e.engine.Start(ctx, req.ChatbotID, req.WorkflowID, req.UserID, req.ConversationID, req.InitialData)
}

// ProcessUserInput resumes a suspended execution with the user's reply.
func (e *Execution) ProcessUserInput(ctx context.Context, executionID string, input map[string]any) (*workflow.AdvanceResult, error) {
	if executionID == "" {
		return nil, ErrInvalidRequest
	}

	return e.engine.Resume(ctx, executionID, input)
}

// Get fetches a single execution.
func (e *Execution) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// List returns all executions of a workflow.
func (e *Execution) List(ctx context.Context, chatbotID, workflowID string) ([]*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().FindByWorkflow(ctx, workflowID, chatbotID)
}

// FindWaiting returns the most recent execution suspended on the given
// conversation, for the message pipeline to decide between start and resume.
func (e *Execution) FindWaiting(ctx context.Context, chatbotID, conversationID string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().FindWaitingByConversation(ctx, chatbotID, conversationID)
}

// Analytics aggregates execution statistics for a workflow.
func (e *Execution) Analytics(ctx context.Context, chatbotID, workflowID string, start, end *time.Time) (*workflow.Stats, error) {
	if _, err := e.persistence.WorkflowRepository().GetByID(ctx, chatbotID, workflowID); err != nil {
		return nil, err
	}

	return e.engine.Analyze(ctx, chatbotID, workflowID, start, end)
}
