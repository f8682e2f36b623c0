package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
)

// DefaultListLimit bounds ListRuns when no limit is given.
const DefaultListLimit = 50

// SaveRun saves or replaces a finished run and its steps.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveRun(ctx context.Context, state run.RunState) error {
	if state.TaskID == "" {
		return fmt.Errorf("cannot save run without a task id")
	}

	status := string(state.Conn)
	var output json.RawMessage
	if state.Result != nil {
		if state.Result.Status != "" {
			status = state.Result.Status
		}
		output = state.Result.Output
	}

	var traceJSON sql.NullString
	if state.Trace != nil {
		b, err := json.Marshal(state.Trace)
		if err != nil {
			return fmt.Errorf("failed to encode trace: %w", err)
		}
		traceJSON = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (task_id, command, output_format, status, error, duration_ms, cost_usd, planning_ms, steps_completed, output, trace, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			command = excluded.command,
			output_format = excluded.output_format,
			status = excluded.status,
			error = excluded.error,
			duration_ms = excluded.duration_ms,
			cost_usd = excluded.cost_usd,
			planning_ms = excluded.planning_ms,
			steps_completed = excluded.steps_completed,
			output = excluded.output,
			trace = excluded.trace,
			finished_at = excluded.finished_at
	`, state.TaskID, state.Command, string(state.Format), status, state.Error,
		state.DurationMS, state.CostUSD, state.PlanningMS, state.Completed,
		nullRaw(output), traceJSON, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE task_id = ?`, state.TaskID); err != nil {
		return fmt.Errorf("failed to delete old steps: %w", err)
	}

	for i, step := range state.Steps {
		deps, err := json.Marshal(step.DependsOn)
		if err != nil {
			return fmt.Errorf("failed to encode dependencies of %s: %w", step.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_steps (task_id, position, step_id, action, target, description, group_label, executor, status, result, error, depends_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, state.TaskID, i, step.ID, step.Action, step.Target, step.Description, step.Group,
			step.Executor, string(step.Status), nullRaw(step.Result), step.Error, string(deps))
		if err != nil {
			return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun retrieves a run by task ID, including its steps.
func (s *SQLiteStore) GetRun(ctx context.Context, taskID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, command, output_format, status, error, duration_ms, cost_usd, planning_ms, steps_completed, output, trace, finished_at
		FROM runs
		WHERE task_id = ?
	`, taskID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	if rec.Steps, err = s.loadSteps(ctx, taskID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first. Steps are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, command, output_format, status, error, duration_ms, cost_usd, planning_ms, steps_completed, output, trace, finished_at
		FROM runs
		ORDER BY finished_at DESC, task_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its steps.
func (s *SQLiteStore) DeleteRun(ctx context.Context, taskID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Foreign keys are per connection, so steps are removed explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete steps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadSteps(ctx context.Context, taskID string) ([]model.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, action, target, description, group_label, executor, status, result, error, depends_on
		FROM run_steps
		WHERE task_id = ?
		ORDER BY position
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	steps := []model.Step{}
	for rows.Next() {
		var step model.Step
		var status string
		var target, desc, group, executor, errStr, result, deps sql.NullString
		if err := rows.Scan(&step.ID, &step.Action, &target, &desc, &group, &executor, &status, &result, &errStr, &deps); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Target = target.String
		step.Description = desc.String
		step.Group = group.String
		step.Executor = executor.String
		step.Status = model.StepStatus(status)
		step.Error = errStr.String
		if result.Valid && result.String != "" {
			step.Result = json.RawMessage(result.String)
		}
		if deps.Valid && deps.String != "" {
			if err := json.Unmarshal([]byte(deps.String), &step.DependsOn); err != nil {
				return nil, fmt.Errorf("failed to decode dependencies of %s: %w", step.ID, err)
			}
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var format string
	var errStr, output, trace sql.NullString
	var finishedMS int64
	err := sc.Scan(&rec.TaskID, &rec.Command, &format, &rec.Status, &errStr,
		&rec.DurationMS, &rec.CostUSD, &rec.PlanningMS, &rec.Completed, &output, &trace, &finishedMS)
	if err != nil {
		return RunRecord{}, err
	}

	rec.Format = model.OutputFormat(format)
	rec.Error = errStr.String
	if output.Valid && output.String != "" {
		rec.Output = json.RawMessage(output.String)
	}
	if trace.Valid {
		rec.Trace = model.DecodeTrace(json.RawMessage(trace.String))
	}
	rec.FinishedAt = time.UnixMilli(finishedMS)
	return rec, nil
}

func nullRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
