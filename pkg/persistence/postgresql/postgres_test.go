package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
	"github.com/flowbot-io/flowbot/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowbot_test"),
			postgres.WithUsername("flowbot"),
			postgres.WithPassword("flowbot"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx
}

func TestPersistence_WorkflowLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		ChatbotID: "bot-1",
		Name:      "Order Status Flow",
		IsActive:  true,
		CreatedBy: "tester",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart, Data: models.StartData{}},
			{ID: "ask", Type: models.NodeTypeInput, Data: models.InputData{Prompt: "Order number?"}},
			{ID: "end", Type: models.NodeTypeEnd, Data: models.EndData{}},
		},
		Connections: []*models.Connection{
			{SourceID: "start", TargetID: "ask"},
			{SourceID: "ask", TargetID: "end"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	loaded, err := p.WorkflowRepository().GetByID(ctx, "bot-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	require.Len(t, loaded.Nodes, 3)

	// Node payloads survive the JSONB round trip typed.
	input, ok := loaded.Nodes[1].Data.(models.InputData)
	require.True(t, ok)
	assert.Equal(t, "Order number?", input.Prompt)

	_, err = p.WorkflowRepository().GetByID(ctx, "other-bot", workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	listed, err := p.WorkflowRepository().ListByChatbot(ctx, "bot-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, p.WorkflowRepository().Delete(ctx, "bot-1", workflow.ID))

	err = p.WorkflowRepository().Delete(ctx, "bot-1", workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_ExecutionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ExecutionRepository()

	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		WorkflowID:     "wf-1",
		ChatbotID:      "bot-1",
		UserID:         "user-1",
		ConversationID: "conv-1",
		CurrentNodeID:  "start",
		Status:         models.ExecutionStatusRunning,
		Data:           map[string]any{"score": float64(10)},
		StartedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.Save(ctx, execution))

	// Suspend it, then verify the waiting lookup by conversation.
	execution.Status = models.ExecutionStatusWaitingForInput
	execution.WaitingForInputType = "text"
	execution.CurrentNodeID = "ask"
	require.NoError(t, repo.Save(ctx, execution))

	waiting, err := repo.FindWaitingByConversation(ctx, "bot-1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, execution.ID, waiting.ID)
	assert.Equal(t, "text", waiting.WaitingForInputType)
	assert.Equal(t, float64(10), waiting.Data["score"])

	active, err := repo.FindActiveByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// Complete it and verify terminal fields persist.
	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	execution.Status = models.ExecutionStatusCompleted
	execution.WaitingForInputType = ""
	execution.CompletedAt = &completedAt
	require.NoError(t, repo.Save(ctx, execution))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)
	assert.Empty(t, loaded.WaitingForInputType)

	active, err = repo.FindActiveByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repo.FindWaitingByConversation(ctx, "bot-1", "conv-1")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestPersistence_FindExpiredWaiting(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.ExecutionRepository()

	now := time.Now().UTC()
	staleMark := now.Add(-48 * time.Hour)

	stale := &models.WorkflowExecution{
		ID: uuid.New().String(), WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-old",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingSince: &staleMark,
		StartedAt:    staleMark,
	}
	fresh := &models.WorkflowExecution{
		ID: uuid.New().String(), WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-new",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingSince: &now,
		StartedAt:    now,
	}
	// An old conversation whose current wait began moments ago.
	multiturn := &models.WorkflowExecution{
		ID: uuid.New().String(), WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-multi",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		WaitingSince: &now,
		StartedAt:    staleMark,
	}
	// Rows from before waiting_since existed fall back to started_at.
	legacy := &models.WorkflowExecution{
		ID: uuid.New().String(), WorkflowID: "wf-1", ChatbotID: "bot-1", ConversationID: "conv-legacy",
		CurrentNodeID: "ask", Status: models.ExecutionStatusWaitingForInput,
		StartedAt: staleMark,
	}

	for _, execution := range []*models.WorkflowExecution{stale, fresh, multiturn, legacy} {
		require.NoError(t, repo.Save(ctx, execution))
	}

	expired, err := repo.FindExpiredWaiting(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 2)

	ids := []string{expired[0].ID, expired[1].ID}
	assert.Contains(t, ids, stale.ID)
	assert.Contains(t, ids, legacy.ID)
}
