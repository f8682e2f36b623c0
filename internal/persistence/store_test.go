package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/runconsole/internal/model"
	"github.com/aristath/runconsole/internal/run"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func finishedRun(taskID string) run.RunState {
	dur := int64(1500)
	cost := 0.42
	return run.RunState{
		Conn:       run.StateDone,
		TaskID:     taskID,
		Command:    "compare headphone prices",
		Format:     model.FormatCSV,
		Phase:      run.PhaseDone,
		PlanningMS: 200,
		Completed:  2,
		DurationMS: dur,
		CostUSD:    cost,
		Steps: []model.Step{
			{ID: "amz-1", Action: "search", Target: "amazon.com", Group: "amazon", Executor: model.ExecutorBrowser, Status: model.StepCompleted, Result: json.RawMessage(`{"price":99}`)},
			{ID: "compare", Action: "compare", Group: "analysis", Executor: model.ExecutorLLM, Status: model.StepFailed, Error: "no data", DependsOn: []string{"amz-1"}},
		},
		Trace: &model.Trace{
			PlanningMS:   200,
			ExecutionMS:  1300,
			TotalCostUSD: cost,
			Steps:        []model.TraceStep{{ID: "amz-1", Status: model.StepCompleted, DurationMS: &dur}},
		},
		Result: &model.TaskResult{TaskID: taskID, Status: "completed", Output: json.RawMessage(`"a,b\n1,2"`), DurationMS: &dur, CostUSD: &cost},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	state := finishedRun("task-1")
	if err := store.SaveRun(ctx, state); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	rec, err := store.GetRun(ctx, "task-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if rec.Command != state.Command || rec.Format != model.FormatCSV {
		t.Errorf("command/format = %q/%q", rec.Command, rec.Format)
	}
	if rec.Status != "completed" {
		t.Errorf("status = %q, want server status", rec.Status)
	}
	if rec.DurationMS != 1500 || rec.CostUSD != 0.42 || rec.PlanningMS != 200 || rec.Completed != 2 {
		t.Errorf("metrics = %+v", rec)
	}
	if string(rec.Output) != `"a,b\n1,2"` {
		t.Errorf("output = %s", rec.Output)
	}
	if rec.Trace == nil || rec.Trace.ExecutionMS != 1300 || len(rec.Trace.Steps) != 1 {
		t.Errorf("trace = %+v", rec.Trace)
	}
	if rec.FinishedAt.IsZero() {
		t.Error("finished_at not set")
	}

	if len(rec.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(rec.Steps))
	}
	first, second := rec.Steps[0], rec.Steps[1]
	if first.ID != "amz-1" || first.Target != "amazon.com" || string(first.Result) != `{"price":99}` {
		t.Errorf("first step = %+v", first)
	}
	if second.Status != model.StepFailed || second.Error != "no data" || len(second.DependsOn) != 1 || second.DependsOn[0] != "amz-1" {
		t.Errorf("second step = %+v", second)
	}
	if first.DependsOn != nil {
		t.Errorf("first step deps = %v, want none", first.DependsOn)
	}
}

func TestSaveRunIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	state := finishedRun("task-1")
	if err := store.SaveRun(ctx, state); err != nil {
		t.Fatalf("first save: %v", err)
	}
	state.Steps = state.Steps[:1]
	state.Error = "partial"
	if err := store.SaveRun(ctx, state); err != nil {
		t.Fatalf("second save: %v", err)
	}

	rec, err := store.GetRun(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Steps) != 1 || rec.Error != "partial" {
		t.Errorf("steps=%d error=%q, want replaced record", len(rec.Steps), rec.Error)
	}
}

func TestSaveRunWithoutResult(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	state := run.RunState{Conn: run.StateError, TaskID: "task-err", Command: "x", Format: model.FormatJSON, Error: "channel closed"}
	if err := store.SaveRun(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := store.GetRun(ctx, "task-err")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != "error" || rec.Trace != nil || rec.Output != nil || len(rec.Steps) != 0 {
		t.Errorf("record = %+v", rec)
	}

	if err := store.SaveRun(ctx, run.RunState{Conn: run.StateDone}); err == nil {
		t.Error("expected error for run without task id")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)
	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := store.SaveRun(ctx, finishedRun(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].TaskID != "t3" || runs[1].TaskID != "t2" {
		t.Fatalf("runs = %+v, want t3, t2", runs)
	}
	if runs[0].Steps != nil {
		t.Error("list should not load steps")
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("list all = %d, %v", len(all), err)
	}
}

func TestDeleteRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveRun(ctx, finishedRun("t1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteRun(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetRun(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if err := store.DeleteRun(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	var n int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_steps`).Scan(&n); err != nil || n != 0 {
		t.Errorf("orphan steps = %d, %v", n, err)
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveRun(ctx, finishedRun("t1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(ctx, "t1"); err != nil {
		t.Errorf("run did not survive reopen: %v", err)
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := testStore(t)
	b := testStore(t)
	ctx := context.Background()

	if err := a.SaveRun(ctx, finishedRun("only-in-a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := b.GetRun(ctx, "only-in-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("store b sees store a's run: %v", err)
	}
}

// The store satisfies the controller's recorder hook.
var _ run.Recorder = (*SQLiteStore)(nil)
var _ Store = (*SQLiteStore)(nil)
