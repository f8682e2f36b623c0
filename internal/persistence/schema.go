package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		task_id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		output_format TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		planning_ms INTEGER NOT NULL DEFAULT 0,
		steps_completed INTEGER NOT NULL DEFAULT 0,
		output TEXT,
		trace TEXT,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

	CREATE TABLE IF NOT EXISTS run_steps (
		task_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		step_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target TEXT,
		description TEXT,
		group_label TEXT,
		executor TEXT,
		status TEXT NOT NULL,
		result TEXT,
		error TEXT,
		depends_on TEXT,
		PRIMARY KEY (task_id, position),
		FOREIGN KEY (task_id) REFERENCES runs(task_id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
