package postgresql

// migrations returns the versioned schema for workflow and execution storage.
// Nodes and connections are stored as JSONB documents inside the workflow row:
// the engine always loads a workflow whole, so normalizing the graph buys
// nothing here.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				chatbot_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_by TEXT NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_chatbot_id ON workflows (chatbot_id);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				chatbot_id TEXT NOT NULL,
				user_id TEXT NOT NULL DEFAULT '',
				conversation_id TEXT NOT NULL DEFAULT '',
				current_node_id TEXT NOT NULL,
				status TEXT NOT NULL,
				waiting_for_input_type TEXT,
				data JSONB NOT NULL DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions (workflow_id, chatbot_id);
			CREATE INDEX IF NOT EXISTS idx_executions_conversation ON workflow_executions (chatbot_id, conversation_id) WHERE status = 'waiting_for_input';
			CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions (status);
		`,
		2: `
			ALTER TABLE workflow_executions ADD COLUMN IF NOT EXISTS waiting_since TIMESTAMP WITH TIME ZONE;

			CREATE INDEX IF NOT EXISTS idx_executions_waiting_since ON workflow_executions (waiting_since) WHERE status = 'waiting_for_input';
		`,
	}
}
