package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newsflow-io/newsflow/internal/fetch"
	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/pipeline"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/scheduler"
	"github.com/newsflow-io/newsflow/internal/store"
)

const feedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>City Desk</title>
    <item>
      <title>Heavy Rainfall Expected Across The City This Weekend</title>
      <link>https://feeds.example.com/city/rain</link>
      <description>Forecasters warn of sustained heavy rain. Authorities urged residents to avoid coastal roads and low-lying areas. Emergency services remain on alert throughout the weekend as the storm system moves in from the coast.</description>
      <pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

type harness struct {
	store  *store.Memory
	queue  *queue.Queue
	runner *Runner
	sched  *scheduler.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemory()
	q := queue.New(st)
	fc := fetch.NewClient(fetch.Options{
		Limiter:        fetch.NewWindowLimiter(fetch.LimitConfig{MaxRequests: 100, Window: time.Minute}),
		AttemptTimeout: 5 * time.Second,
	})
	tr := pipeline.NewTracker(st)
	return &harness{
		store:  st,
		queue:  q,
		runner: NewRunner(st, q, fc, tr, nil, 1, time.Millisecond),
		sched:  scheduler.New(st, q, nil, nil, time.Minute),
	}
}

func (h *harness) seed(t *testing.T, feedURL string) {
	t.Helper()
	ctx := context.Background()
	agent := model.Agent{
		ID:       "a1",
		Name:     "city-desk",
		Type:     "weather",
		Keywords: []string{"rain", "storm"},
		IsActive: true,
		Schedule: model.Schedule{Enabled: true},
	}
	if err := h.store.CreateAgent(ctx, &agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	src := model.Source{
		ID:       "s1",
		AgentID:  "a1",
		Name:     "city feed",
		URL:      feedURL,
		Type:     model.SourceTypeFeed,
		IsActive: true,
		Config:   model.SourceConfig{Retry: model.RetryConfig{MaxAttempts: 2, MaxDelay: time.Millisecond}},
	}
	if err := h.store.CreateSource(ctx, &src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
}

// drain sweeps until the queue has nothing claimable.
func (h *harness) drain(t *testing.T, ctx context.Context) {
	t.Helper()
	for {
		worked, err := h.runner.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if !worked {
			return
		}
	}
}

func TestFetchTaskEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedFixture))
	}))
	defer srv.Close()

	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, srv.URL)

	if _, err := h.sched.Run(ctx, scheduler.Options{Force: true}); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}

	worked, err := h.runner.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !worked {
		t.Fatal("expected the fetch task to be processed")
	}

	fetchTasks, _ := h.store.QueryTasks(ctx, store.TaskFilter{Status: model.TaskStatusCompleted, Type: model.TaskTypeFetch})
	if len(fetchTasks) != 1 {
		t.Fatalf("expected completed fetch task, got %d", len(fetchTasks))
	}
	if fetchTasks[0].Metadata["admitted"] != 1 {
		t.Fatalf("expected one admitted item, got %v", fetchTasks[0].Metadata)
	}

	entries, _ := h.store.ListPipelineEntries(ctx, store.EntryFilter{Category: "weather"})
	if len(entries) != 1 {
		t.Fatalf("expected one pipeline entry, got %d", len(entries))
	}
	if entries[0].Stage != model.StageFetched {
		t.Fatalf("entry should start at fetched, got %s", entries[0].Stage)
	}

	src, _, _ := h.store.GetSource(ctx, "s1")
	if src.LastFetchedAt == nil || src.ErrorCount != 0 {
		t.Fatalf("source success not recorded: %+v", src)
	}

	// next sweep picks up the spawned analyze task
	worked, err = h.runner.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if !worked {
		t.Fatal("expected the analyze task to be processed")
	}
	entries, _ = h.store.ListPipelineEntries(ctx, store.EntryFilter{Category: "weather"})
	if entries[0].Stage != model.StageAnalyzed {
		t.Fatalf("entry should be analyzed, got %s", entries[0].Stage)
	}
}

func TestRefetchDetectsDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedFixture))
	}))
	defer srv.Close()

	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, srv.URL)

	for i := 0; i < 2; i++ {
		if _, err := h.sched.Run(ctx, scheduler.Options{Force: true}); err != nil {
			t.Fatalf("scheduler run %d: %v", i, err)
		}
		h.drain(t, ctx)
	}

	entries, _ := h.store.ListPipelineEntries(ctx, store.EntryFilter{Category: "weather"})
	if len(entries) != 1 {
		t.Fatalf("refetched item must not create a second entry, got %d", len(entries))
	}

	completed, _ := h.store.QueryTasks(ctx, store.TaskFilter{Status: model.TaskStatusCompleted, Type: model.TaskTypeFetch})
	if len(completed) != 2 {
		t.Fatalf("expected both fetch tasks completed, got %d", len(completed))
	}
	var sawDuplicate bool
	for _, task := range completed {
		if task.Metadata["duplicates"] == 1 {
			sawDuplicate = true
		}
	}
	if !sawDuplicate {
		t.Fatal("second fetch should report a duplicate")
	}
}

func TestFetchFailureRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, srv.URL)

	if _, err := h.sched.Run(ctx, scheduler.Options{Force: true}); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}
	if _, err := h.runner.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	src, _, _ := h.store.GetSource(ctx, "s1")
	if src.ErrorCount == 0 || src.LastError == "" {
		t.Fatalf("source failure not recorded: %+v", src)
	}

	pending, _ := h.store.QueryTasks(ctx, store.TaskFilter{Status: model.TaskStatusPending})
	if len(pending) != 1 {
		t.Fatalf("failed fetch should return to pending for retry, got %d", len(pending))
	}
	if pending[0].RetryCount != 1 {
		t.Fatalf("retry count should be 1, got %d", pending[0].RetryCount)
	}
	if pending[0].Error == nil || pending[0].Error.Category != string(fetch.ErrServer) {
		t.Fatalf("error category should be recorded, got %+v", pending[0].Error)
	}
}
