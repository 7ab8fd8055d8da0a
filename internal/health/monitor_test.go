package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/store"
)

func TestScore(t *testing.T) {
	t.Parallel()
	cases := []struct {
		completed, failed int
		want              float64
	}{
		{0, 0, 1},
		{10, 0, 1},
		{0, 10, 0},
		{5, 5, 0.5},
	}
	for _, tc := range cases {
		if got := Score(tc.completed, tc.failed); got != tc.want {
			t.Fatalf("Score(%d,%d): got %v want %v", tc.completed, tc.failed, got, tc.want)
		}
	}
}

func seedOutcomes(t *testing.T, st store.Store, agentID string, completed, failed int) {
	t.Helper()
	ctx := context.Background()
	q := queue.New(st)
	for i := 0; i < completed+failed; i++ {
		id, err := q.Enqueue(ctx, model.Task{Type: model.TaskTypeFetch, AgentID: agentID, MaxRetries: 1})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if won, err := st.ClaimTask(ctx, id, agentID); err != nil || !won {
			t.Fatalf("claim: won=%v err=%v", won, err)
		}
		if i < completed {
			if err := st.CompleteTask(ctx, id, nil); err != nil {
				t.Fatalf("CompleteTask: %v", err)
			}
		} else {
			err := st.RecordTaskFailure(ctx, id, model.TaskError{Category: "server_error", Message: "x", At: time.Now()}, model.TaskStatusFailed, 1)
			if err != nil {
				t.Fatalf("RecordTaskFailure: %v", err)
			}
		}
	}
}

func TestHealthAggregation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()

	a1 := model.Agent{ID: "a1", Name: "alpha", IsActive: true}
	a2 := model.Agent{ID: "a2", Name: "beta", IsActive: true}
	if err := st.CreateAgent(ctx, &a1); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if err := st.CreateAgent(ctx, &a2); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	seedOutcomes(t, st, "a1", 3, 1)

	report, err := NewMonitor(st).Health(ctx, "")
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("expected both agents, got %d", len(report))
	}

	byID := make(map[string]model.AgentHealth, len(report))
	for _, h := range report {
		byID[h.AgentID] = h
	}
	h1 := byID["a1"]
	if h1.Completed != 3 || h1.Failed != 1 {
		t.Fatalf("unexpected counts %+v", h1)
	}
	if h1.SuccessRate != 0.75 {
		t.Fatalf("success rate: got %v want 0.75", h1.SuccessRate)
	}
	want := 0.7*0.75 + 0.3*(1-0.25)
	if diff := h1.HealthScore - want; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("health score: got %v want %v", h1.HealthScore, want)
	}
	if byID["a2"].HealthScore != 1 {
		t.Fatalf("idle agent should score 1, got %v", byID["a2"].HealthScore)
	}
}

// statsFailingStore breaks TaskStats for one agent to exercise partial
// reporting.
type statsFailingStore struct {
	store.Store
	failFor string
}

func (s *statsFailingStore) TaskStats(ctx context.Context, agentID string, since time.Time) (int, int, error) {
	if agentID == s.failFor {
		return 0, 0, errors.New("stats backend unavailable")
	}
	return s.Store.TaskStats(ctx, agentID, since)
}

func TestHealthPartialResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemory()

	a1 := model.Agent{ID: "a1", Name: "alpha", IsActive: true}
	a2 := model.Agent{ID: "a2", Name: "beta", IsActive: true}
	if err := mem.CreateAgent(ctx, &a1); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if err := mem.CreateAgent(ctx, &a2); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	report, err := NewMonitor(&statsFailingStore{Store: mem, failFor: "a1"}).Health(ctx, "")
	if err != nil {
		t.Fatalf("one broken agent must not fail the call: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("expected both agents reported, got %d", len(report))
	}
	for _, h := range report {
		switch h.AgentID {
		case "a1":
			if h.Error == "" {
				t.Fatal("broken agent should carry its error")
			}
		case "a2":
			if h.Error != "" {
				t.Fatalf("healthy agent should not carry an error, got %q", h.Error)
			}
		}
	}
}

func TestHealthSingleAgent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	a1 := model.Agent{ID: "a1", Name: "alpha", IsActive: true}
	if err := st.CreateAgent(ctx, &a1); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	report, err := NewMonitor(st).Health(ctx, "a1")
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if len(report) != 1 || report[0].AgentID != "a1" {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := NewMonitor(st).Health(ctx, "missing"); err == nil {
		t.Fatal("unknown agent should error")
	}
}
