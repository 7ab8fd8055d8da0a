package store

import (
	"context"
	"testing"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
)

func TestClaimTaskCompareAndSwap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	task := model.Task{Status: model.TaskStatusPending}
	if err := m.CreateTask(ctx, &task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	won, err := m.ClaimTask(ctx, task.ID, "a1")
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	won, err = m.ClaimTask(ctx, task.ID, "a2")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatal("claimed task must not be claimable again")
	}

	got, _, _ := m.GetTask(ctx, task.ID)
	if got.Status != model.TaskStatusClaimed || got.AgentID != "a1" {
		t.Fatalf("unexpected task state %+v", got)
	}
}

func TestQueryTasksOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, tk := range []model.Task{
		{ID: "older-low", Priority: model.PriorityLow, Status: model.TaskStatusPending, CreatedAt: base},
		{ID: "newer-high", Priority: model.PriorityHigh, Status: model.TaskStatusPending, CreatedAt: base.Add(time.Minute)},
		{ID: "older-high", Priority: model.PriorityHigh, Status: model.TaskStatusPending, CreatedAt: base},
	} {
		task := tk
		if err := m.CreateTask(ctx, &task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	tasks, err := m.QueryTasks(ctx, TaskFilter{Status: model.TaskStatusPending})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	want := []string{"older-high", "newer-high", "older-low"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", ids, want)
		}
	}
}

func TestQueryTasksAssignableTo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	mine := model.Task{ID: "mine", Status: model.TaskStatusPending, AgentID: "a1"}
	theirs := model.Task{ID: "theirs", Status: model.TaskStatusPending, AgentID: "a2"}
	free := model.Task{ID: "free", Status: model.TaskStatusPending}
	for _, tk := range []*model.Task{&mine, &theirs, &free} {
		if err := m.CreateTask(ctx, tk); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	tasks, err := m.QueryTasks(ctx, TaskFilter{Status: model.TaskStatusPending, AssignableTo: "a1"})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	seen := make(map[string]bool)
	for _, task := range tasks {
		seen[task.ID] = true
	}
	if !seen["mine"] || !seen["free"] || seen["theirs"] {
		t.Fatalf("assignable set wrong: %v", seen)
	}
}

func TestRecordSourceSuccessResetsErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	src := model.Source{ID: "s1", ErrorCount: 0}
	if err := m.CreateSource(ctx, &src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	now := time.Now()
	if err := m.RecordSourceFailure(ctx, "s1", "timeout", now); err != nil {
		t.Fatalf("RecordSourceFailure: %v", err)
	}
	if err := m.RecordSourceFailure(ctx, "s1", "timeout", now); err != nil {
		t.Fatalf("RecordSourceFailure: %v", err)
	}
	got, _, _ := m.GetSource(ctx, "s1")
	if got.ErrorCount != 2 || got.LastError == "" {
		t.Fatalf("unexpected source state %+v", got)
	}

	if err := m.RecordSourceSuccess(ctx, "s1", now, 100*time.Millisecond); err != nil {
		t.Fatalf("RecordSourceSuccess: %v", err)
	}
	got, _, _ = m.GetSource(ctx, "s1")
	if got.ErrorCount != 0 {
		t.Fatalf("success must reset error count, got %d", got.ErrorCount)
	}
	if got.LastFetchedAt == nil {
		t.Fatal("last_fetched_at should be stamped")
	}

	stats, err := m.GetSourceStats(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSourceStats: %v", err)
	}
	if stats.FetchSuccesses != 1 || stats.FetchFailures != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAdvancePipelineStageCAS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	e := model.PipelineEntry{ID: "e1", Stage: model.StageFetched}
	if err := m.CreatePipelineEntry(ctx, &e); err != nil {
		t.Fatalf("CreatePipelineEntry: %v", err)
	}

	ok, err := m.AdvancePipelineStage(ctx, "e1", model.StageFetched, model.StageAnalyzed)
	if err != nil || !ok {
		t.Fatalf("advance: ok=%v err=%v", ok, err)
	}
	ok, err = m.AdvancePipelineStage(ctx, "e1", model.StageFetched, model.StageAnalyzed)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if ok {
		t.Fatal("stale from-stage must not swap")
	}
}

func TestCompleteTaskMergesResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	task := model.Task{Status: model.TaskStatusPending, Metadata: map[string]any{"source_type": "feed"}}
	if err := m.CreateTask(ctx, &task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if won, _ := m.ClaimTask(ctx, task.ID, "a1"); !won {
		t.Fatal("claim failed")
	}
	if err := m.CompleteTask(ctx, task.ID, map[string]any{"fetched": 5}); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	got, _, _ := m.GetTask(ctx, task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Metadata["source_type"] != "feed" || got.Metadata["fetched"] != 5 {
		t.Fatalf("result should merge into metadata, got %v", got.Metadata)
	}
}

func TestCredibilityLatestWinsTrendAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, overall := range []float64{70, 80} {
		err := m.SaveCredibilityScore(ctx, model.CredibilityScore{
			SourceID:   "s1",
			Overall:    overall,
			ComputedAt: at.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveCredibilityScore: %v", err)
		}
	}

	score, ok, err := m.GetCredibilityScore(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("GetCredibilityScore: ok=%v err=%v", ok, err)
	}
	if score.Overall != 80 {
		t.Fatalf("latest score must win, got %v", score.Overall)
	}

	trend, err := m.CredibilityTrend(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("CredibilityTrend: %v", err)
	}
	if len(trend) != 2 || trend[0].Overall != 70 || trend[1].Overall != 80 {
		t.Fatalf("trend should append, got %+v", trend)
	}
}

func TestListSourcesDeterministicOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"s-c", "s-a", "s-b"} {
		src := model.Source{ID: id, AgentID: "a1", Name: id, URL: "https://example.com/" + id, Type: model.SourceTypeFeed, IsActive: true, CreatedAt: created}
		if err := m.CreateSource(ctx, &src); err != nil {
			t.Fatalf("CreateSource %s: %v", id, err)
		}
	}

	for i := 0; i < 5; i++ {
		out, err := m.ListSources(ctx, SourceFilter{AgentID: "a1"})
		if err != nil {
			t.Fatalf("ListSources: %v", err)
		}
		if len(out) != 3 {
			t.Fatalf("expected 3 sources, got %d", len(out))
		}
		if out[0].ID != "s-a" || out[1].ID != "s-b" || out[2].ID != "s-c" {
			t.Fatalf("unstable order: %s %s %s", out[0].ID, out[1].ID, out[2].ID)
		}
	}
}
