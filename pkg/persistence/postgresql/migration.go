package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT false,
				owner VARCHAR(255) NOT NULL,
				triggers JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				variables JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_enabled ON workflows(enabled);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			CREATE TABLE processed_events (
				event_id VARCHAR(512) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				sender TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				event_time TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (event_id, workflow_id)
			);

			CREATE INDEX idx_processed_events_processed_at ON processed_events(processed_at);
		`,
		3: `
			CREATE TABLE execution_history (
				execution_id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				trigger_kind VARCHAR(64) NOT NULL DEFAULT '',
				success BOOLEAN NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				actions_run JSONB NOT NULL DEFAULT '[]',
				outcomes JSONB NOT NULL DEFAULT '[]',
				variables JSONB NOT NULL DEFAULT '{}',
				duration_ms BIGINT NOT NULL DEFAULT 0,
				executed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_history_workflow ON execution_history(workflow_id, executed_at DESC);
		`,
	}
}
