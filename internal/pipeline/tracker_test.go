package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/store"
)

var testBody = strings.Repeat("Heavy rainfall is expected across the city this weekend. ", 12)

func testAgent() model.Agent {
	return model.Agent{ID: "a1", Name: "weather-desk", Type: "weather", Keywords: []string{"rain", "storm"}, IsActive: true}
}

func testSource() model.Source {
	return model.Source{ID: "s1", AgentID: "a1", Name: "City Feed", URL: "https://feeds.example.com/city", Type: model.SourceTypeFeed, IsActive: true}
}

func goodContent() model.NormalizedContent {
	return model.NormalizedContent{
		Title:       "Rainstorm Heading Toward The City This Weekend",
		Summary:     "Forecasters warn of heavy rain.",
		Body:        testBody,
		SourceURL:   "https://feeds.example.com/city/rainstorm",
		PublishedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Tags:        []string{"weather"},
	}
}

func TestAdmitCreatesEntryAndTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	res, err := tr.Admit(ctx, testAgent(), testSource(), goodContent())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !res.Admitted {
		t.Fatalf("expected admission, reason=%q quality=%v", res.Reason, res.Quality)
	}
	if res.Entry.Stage != model.StageFetched {
		t.Fatalf("new entry should start at fetched, got %s", res.Entry.Stage)
	}
	if res.Entry.ContentHash == "" {
		t.Fatal("content hash should be set")
	}
	if res.Task.Type != model.TaskTypeAnalyze {
		t.Fatalf("expected analyze task, got %s", res.Task.Type)
	}
	if res.Task.Metadata["entry_id"] != res.Entry.ID {
		t.Fatal("analyze task should reference the entry")
	}

	stored, ok, err := st.GetPipelineEntry(ctx, res.Entry.ID)
	if err != nil || !ok {
		t.Fatalf("entry not persisted: ok=%v err=%v", ok, err)
	}
	if stored.QualityScore != res.Quality || stored.RelevanceScore != res.Relevance {
		t.Fatal("scores must be written at creation")
	}
}

func TestAnalyzeTaskSurvivesFirstFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	res, err := tr.Admit(ctx, testAgent(), testSource(), goodContent())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !res.Admitted {
		t.Fatalf("expected admission, reason=%q", res.Reason)
	}
	if res.Task.MaxRetries != queue.DefaultMaxRetries {
		t.Fatalf("analyze task max retries: got %d want %d", res.Task.MaxRetries, queue.DefaultMaxRetries)
	}

	q := queue.New(st)
	if err := q.Fail(ctx, res.Task.ID, model.TaskError{
		Category: "server_error",
		Message:  "analyzer unavailable",
		At:       time.Now(),
	}); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, ok, err := st.GetTask(ctx, res.Task.ID)
	if err != nil || !ok {
		t.Fatalf("GetTask: ok=%v err=%v", ok, err)
	}
	if got.Status != model.TaskStatusPending {
		t.Fatalf("first failure must return the task to pending, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count: got %d want 1", got.RetryCount)
	}
}

func TestAdmitDiscardsLowQuality(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	res, err := tr.Admit(ctx, testAgent(), testSource(), model.NormalizedContent{Title: "x"})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if res.Admitted {
		t.Fatal("thin content should be discarded")
	}

	entries, err := st.ListPipelineEntries(ctx, store.EntryFilter{})
	if err != nil {
		t.Fatalf("ListPipelineEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("discarded content must not occupy pipeline state")
	}
}

func TestAdmitRejectsDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	first, err := tr.Admit(ctx, testAgent(), testSource(), goodContent())
	if err != nil || !first.Admitted {
		t.Fatalf("first admit failed: %+v err=%v", first, err)
	}

	near := goodContent()
	near.Title = "Rainstorm Heading Toward The City This Weekend Says Forecast"
	near.SourceURL = "https://othersite.example/rainstorm"
	second, err := tr.Admit(ctx, testAgent(), testSource(), near)
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if second.Admitted {
		t.Fatal("near-duplicate should not be admitted")
	}
	if second.Duplicate == nil || !second.Duplicate.IsDuplicate {
		t.Fatal("duplicate result should be attached")
	}
	if second.Duplicate.SuggestedMerge == nil {
		t.Fatal("duplicate should carry a merge proposal")
	}
}

func TestTaskPriorityNudge(t *testing.T) {
	t.Parallel()
	cases := []struct {
		quality, relevance float64
		want               int
	}{
		{0.9, 0.9, model.PriorityHigh},
		{0.4, 0.4, model.PriorityLow},
		{0.9, 0.4, model.PriorityNormal},
		{0.4, 0.9, model.PriorityNormal},
	}
	for _, tc := range cases {
		if got := taskPriority(tc.quality, tc.relevance); got != tc.want {
			t.Fatalf("taskPriority(%v,%v): got %d want %d", tc.quality, tc.relevance, got, tc.want)
		}
	}
}

func TestQualityScore(t *testing.T) {
	t.Parallel()
	full := QualityScore(goodContent())
	if full < 0.9 {
		t.Fatalf("complete content should score high, got %v", full)
	}
	empty := QualityScore(model.NormalizedContent{})
	if empty != 0 {
		t.Fatalf("empty content should score 0, got %v", empty)
	}
	titleOnly := QualityScore(model.NormalizedContent{Title: "A headline long enough to count"})
	if titleOnly >= DefaultQualityThreshold+0.1 {
		t.Fatalf("title-only content should sit near the gate, got %v", titleOnly)
	}
}

func TestRelevanceScore(t *testing.T) {
	t.Parallel()
	c := goodContent()
	got := RelevanceScore(c, []string{"rain", "earthquake"})
	if got != 0.5 {
		t.Fatalf("one of two keywords present: got %v want 0.5", got)
	}
	if got := RelevanceScore(c, nil); got != 1 {
		t.Fatalf("no keywords configured: got %v want 1", got)
	}
}

func TestAdvanceTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	res, err := tr.Admit(ctx, testAgent(), testSource(), goodContent())
	if err != nil || !res.Admitted {
		t.Fatalf("admit failed: %+v err=%v", res, err)
	}
	id := res.Entry.ID

	// skipping a stage is invalid
	if err := tr.Advance(ctx, id, model.StageDrafted); err == nil {
		t.Fatal("fetched -> drafted must be rejected")
	}
	for _, stage := range []model.Stage{model.StageAnalyzed, model.StageDrafted, model.StagePendingApproval, model.StagePublished} {
		if err := tr.Advance(ctx, id, stage); err != nil {
			t.Fatalf("advance to %s: %v", stage, err)
		}
	}
	// published is terminal
	if err := tr.Reject(ctx, id); err == nil {
		t.Fatal("published entry must not be rejectable")
	}
}

func TestRejectFromMidPipeline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	tr := NewTracker(st)

	res, err := tr.Admit(ctx, testAgent(), testSource(), goodContent())
	if err != nil || !res.Admitted {
		t.Fatalf("admit failed: %+v err=%v", res, err)
	}
	id := res.Entry.ID

	if err := tr.Advance(ctx, id, model.StageAnalyzed); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := tr.Reject(ctx, id); err != nil {
		t.Fatalf("reject: %v", err)
	}
	entry, _, _ := st.GetPipelineEntry(ctx, id)
	if entry.Stage != model.StageRejected {
		t.Fatalf("expected rejected, got %s", entry.Stage)
	}
	// rejecting again is a no-op
	if err := tr.Reject(ctx, id); err != nil {
		t.Fatalf("second reject: %v", err)
	}
}

func TestContentHashStable(t *testing.T) {
	t.Parallel()
	a := ContentHash("Title", "Body text here")
	b := ContentHash("  title ", "body   TEXT here")
	if a != b {
		t.Fatal("hash should normalize case and whitespace")
	}
	if a == ContentHash("Title", "different body") {
		t.Fatal("different content should hash differently")
	}
}
