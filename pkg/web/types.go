// Package web provides the REST API for workflow management and execution.
package web

import "github.com/flowbot-io/flowbot/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string               `json:"name"        validate:"required,min=3"`
	Description string               `json:"description"`
	IsActive    bool                 `json:"is_active"`
	CreatedBy   string               `json:"created_by"  validate:"required"`
	Nodes       []*models.Node       `json:"nodes"       validate:"required,min=1"`
	Connections []*models.Connection `json:"connections"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string              `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string              `json:"description,omitempty"`
	IsActive    *bool                `json:"is_active,omitempty"`
	Nodes       []*models.Node       `json:"nodes,omitempty"`
	Connections []*models.Connection `json:"connections,omitempty"`
}

// StartExecutionRequest represents the request body for launching an execution.
type StartExecutionRequest struct {
	UserID         string         `json:"user_id"         validate:"required"`
	ConversationID string         `json:"conversation_id" validate:"required"`
	InitialData    map[string]any `json:"initial_data,omitempty"`
}

// SubmitInputRequest carries a user reply for a suspended execution.
type SubmitInputRequest struct {
	Input map[string]any `json:"input" validate:"required,min=1"`
}
