package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `id, chatbot_id, name, description, is_active, created_by, nodes, connections, created_at, updated_at`

func (wr *WorkflowRepository) GetByID(ctx context.Context, chatbotID, id string) (*models.Workflow, error) {
	row := wr.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND chatbot_id = $2`,
		id, chatbotID,
	)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", chatbotID, id, err)
	}

	return workflow, nil
}

func (wr *WorkflowRepository) ListByChatbot(ctx context.Context, chatbotID string) ([]*models.Workflow, error) {
	rows, err := wr.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE chatbot_id = $1 ORDER BY created_at DESC`,
		chatbotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows for chatbot %s: %w", chatbotID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			wr.logger.Warn("Failed to close workflow rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow rows: %w", err)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodesJSON, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, fmt.Errorf("failed to encode nodes: %w", err))
	}

	connectionsJSON, err := json.Marshal(workflow.Connections)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, fmt.Errorf("failed to encode connections: %w", err))
	}

	_, err = wr.db.ExecContext(ctx, `
		INSERT INTO workflows (id, chatbot_id, name, description, is_active, created_by, nodes, connections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			nodes = EXCLUDED.nodes,
			connections = EXCLUDED.connections,
			updated_at = EXCLUDED.updated_at
	`,
		workflow.ID, workflow.ChatbotID, workflow.Name, workflow.Description, workflow.IsActive,
		workflow.CreatedBy, nodesJSON, connectionsJSON, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ChatbotID, workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(ctx context.Context, chatbotID, id string) error {
	result, err := wr.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE id = $1 AND chatbot_id = $2`,
		id, chatbotID,
	)
	if err != nil {
		return persistence.NewWorkflowError("Delete", chatbotID, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", chatbotID, id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", chatbotID, id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow        models.Workflow
		nodesJSON       []byte
		connectionsJSON []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.ChatbotID, &workflow.Name, &workflow.Description,
		&workflow.IsActive, &workflow.CreatedBy, &nodesJSON, &connectionsJSON,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	if err := json.Unmarshal(connectionsJSON, &workflow.Connections); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}

	return &workflow, nil
}
