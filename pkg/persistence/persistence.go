// Package persistence provides the storage abstraction for workflows and
// their executions.
package persistence

import (
	"context"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Workflows are always scoped
// to the owning chatbot; lookups with the wrong chatbot ID behave as not found.
type WorkflowRepository interface {
	GetByID(ctx context.Context, chatbotID, id string) (*models.Workflow, error)
	ListByChatbot(ctx context.Context, chatbotID string) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, chatbotID, id string) error
}

// ExecutionRepository stores in-flight and historical workflow executions.
// The execution record is read-modify-written at every node transition, so
// Save must be last-writer-safe under the engine's per-execution lock.
type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	FindByWorkflow(ctx context.Context, workflowID, chatbotID string) ([]*models.WorkflowExecution, error)

	// FindActiveByWorkflow returns executions whose status is not terminal.
	// Used by the workflow deletion guard.
	FindActiveByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	// FindWaitingByConversation returns the suspended execution tied to a
	// conversation, or ErrExecutionNotFound when there is none. The message
	// pipeline uses this to decide between start and resume.
	FindWaitingByConversation(ctx context.Context, chatbotID, conversationID string) (*models.WorkflowExecution, error)

	// FindExpiredWaiting returns executions that have been waiting for input
	// since before the cutoff. Used by the janitor.
	FindExpiredWaiting(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error)
}
