package report

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/runtime"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteStoreConfig{
		DSN: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_RequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteStoreConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSaveRunAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := &runtime.RunResult{
		RunID:    "run-1",
		CrewName: "modernization",
		Order:    []string{"analyze", "report"},
		Outputs: map[string]runtime.TaskResult{
			"analyze": {TaskID: "analyze", Agent: "analyst", Output: "callbacks found", Elapsed: 120 * time.Millisecond},
			"report":  {TaskID: "report", Agent: "writer", Output: "plan drafted", Elapsed: 40 * time.Millisecond},
		},
		Usage:   core.LLMTokenUsage{TotalTokens: 42},
		Started: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Elapsed: 200 * time.Millisecond,
	}

	if err := store.SaveRun(ctx, result, "completed"); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rec, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Crew != "modernization" {
		t.Errorf("Crew = %q, want modernization", rec.Crew)
	}
	if rec.Status != "completed" {
		t.Errorf("Status = %q, want completed", rec.Status)
	}
	if rec.TotalTokens != 42 {
		t.Errorf("TotalTokens = %d, want 42", rec.TotalTokens)
	}
	if !rec.Started.Equal(result.Started) {
		t.Errorf("Started = %v, want %v", rec.Started, result.Started)
	}
	wantFinished := result.Started.Add(result.Elapsed)
	if !rec.Finished.Equal(wantFinished) {
		t.Errorf("Finished = %v, want %v", rec.Finished, wantFinished)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestTaskOutputs_PreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := &runtime.RunResult{
		RunID:    "run-1",
		CrewName: "modernization",
		Order:    []string{"analyze", "migrate", "report"},
		Outputs: map[string]runtime.TaskResult{
			"analyze": {TaskID: "analyze", Agent: "analyst", Output: "a"},
			"migrate": {TaskID: "migrate", Agent: "migrator", Output: "b"},
			"report":  {TaskID: "report", Agent: "writer", Output: "c"},
		},
		Started: time.Now(),
	}
	if err := store.SaveRun(ctx, result, "completed"); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	outputs, err := store.TaskOutputs(ctx, "run-1")
	if err != nil {
		t.Fatalf("TaskOutputs: %v", err)
	}
	if len(outputs) != 3 {
		t.Fatalf("len(outputs) = %d, want 3", len(outputs))
	}
	for i, want := range []string{"analyze", "migrate", "report"} {
		if outputs[i].Task != want {
			t.Errorf("outputs[%d].Task = %q, want %q", i, outputs[i].Task, want)
		}
	}
	if outputs[1].Agent != "migrator" || outputs[1].Output != "b" {
		t.Errorf("outputs[1] = %+v", outputs[1])
	}
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		result := &runtime.RunResult{
			RunID:    id,
			CrewName: "modernization",
			Started:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.SaveRun(ctx, result, "completed"); err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	recs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].ID != "run-3" || recs[1].ID != "run-2" {
		t.Errorf("order = %s, %s; want run-3, run-2", recs[0].ID, recs[1].ID)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestSaveRun_DuplicateIDFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := &runtime.RunResult{RunID: "run-1", CrewName: "modernization", Started: time.Now()}
	if err := store.SaveRun(ctx, result, "completed"); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(ctx, result, "completed"); err == nil {
		t.Fatal("expected error for duplicate run ID")
	}
}
