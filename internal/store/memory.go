package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newsflow-io/newsflow/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It is the injected test double
// and honors the same compare-and-swap semantics as the Postgres store.
type Memory struct {
	mu      sync.Mutex
	agents  map[string]model.Agent
	sources map[string]model.Source
	tasks   map[string]model.Task
	entries map[string]model.PipelineEntry
	scores  map[string]model.CredibilityScore
	trends  map[string][]model.TrendPoint
	stats   map[string]model.SourceStats
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:  make(map[string]model.Agent),
		sources: make(map[string]model.Source),
		tasks:   make(map[string]model.Task),
		entries: make(map[string]model.PipelineEntry),
		scores:  make(map[string]model.CredibilityScore),
		trends:  make(map[string][]model.TrendPoint),
		stats:   make(map[string]model.SourceStats),
	}
}

func (m *Memory) CreateAgent(ctx context.Context, a *model.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.agents[a.ID] = *a
	return nil
}

func (m *Memory) GetAgent(ctx context.Context, id string) (model.Agent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	return a, ok, nil
}

func (m *Memory) ListAgents(ctx context.Context, f AgentFilter) ([]model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Agent
	for _, a := range m.agents {
		if f.OnlyActive && !a.IsActive {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateAgentLastRun(ctx context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.LastRunAt = &t
	m.agents[id] = a
	return nil
}

func (m *Memory) CreateSource(ctx context.Context, s *model.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.sources[s.ID] = *s
	return nil
}

func (m *Memory) GetSource(ctx context.Context, id string) (model.Source, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	return s, ok, nil
}

func (m *Memory) ListSources(ctx context.Context, f SourceFilter) ([]model.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Source
	for _, s := range m.sources {
		if f.AgentID != "" && s.AgentID != f.AgentID {
			continue
		}
		if f.OnlyActive && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) RecordSourceSuccess(ctx context.Context, id string, at time.Time, responseTime time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}
	s.LastFetchedAt = &at
	s.ErrorCount = 0
	s.LastError = ""
	m.sources[id] = s

	st := m.stats[id]
	st.SourceID = id
	st.FetchSuccesses++
	if responseTime > 0 {
		if st.AvgResponseTime == 0 {
			st.AvgResponseTime = responseTime
		} else {
			st.AvgResponseTime = (st.AvgResponseTime + responseTime) / 2
		}
	}
	m.stats[id] = st
	return nil
}

func (m *Memory) RecordSourceFailure(ctx context.Context, id string, msg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}
	s.ErrorCount++
	s.LastError = msg
	m.sources[id] = s

	st := m.stats[id]
	st.SourceID = id
	st.FetchFailures++
	m.stats[id] = st
	return nil
}

func (m *Memory) CreateTask(ctx context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (model.Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *Memory) QueryTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.AgentID != "" && t.AgentID != f.AgentID {
			continue
		}
		if f.Unassigned && t.AgentID != "" {
			continue
		}
		if f.AssignableTo != "" && t.AgentID != "" && t.AgentID != f.AssignableTo {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ClaimTask(ctx context.Context, taskID, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return false, nil
	}
	if t.Status != model.TaskStatusPending {
		return false, nil
	}
	t.Status = model.TaskStatusClaimed
	t.AgentID = agentID
	t.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = t
	return true, nil
}

func (m *Memory) AssignTask(ctx context.Context, taskID, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return false, nil
	}
	if t.Status != model.TaskStatusPending || t.AgentID != "" {
		return false, nil
	}
	t.AgentID = agentID
	t.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = t
	return true, nil
}

func (m *Memory) SetTaskStatus(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return false, nil
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = t
	return true, nil
}

func (m *Memory) CompleteTask(ctx context.Context, taskID string, result map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = model.TaskStatusCompleted
	if len(result) > 0 {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(result))
		}
		for k, v := range result {
			t.Metadata[k] = v
		}
	}
	t.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = t
	return nil
}

func (m *Memory) RecordTaskFailure(ctx context.Context, taskID string, terr model.TaskError, status model.TaskStatus, retryCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.Error = &terr
	t.RetryCount = retryCount
	t.UpdatedAt = time.Now().UTC()
	m.tasks[taskID] = t
	return nil
}

func (m *Memory) CountActiveTasks(ctx context.Context, agentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.AgentID != agentID {
			continue
		}
		if t.Status == model.TaskStatusClaimed || t.Status == model.TaskStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (m *Memory) TaskStats(ctx context.Context, agentID string, since time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var completed, failed int
	for _, t := range m.tasks {
		if t.AgentID != agentID || t.UpdatedAt.Before(since) {
			continue
		}
		switch t.Status {
		case model.TaskStatusCompleted:
			completed++
		case model.TaskStatusFailed:
			failed++
		}
	}
	return completed, failed, nil
}

func (m *Memory) CreatePipelineEntry(ctx context.Context, e *model.PipelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Stage == "" {
		e.Stage = model.StageFetched
	}
	m.entries[e.ID] = *e
	return nil
}

func (m *Memory) GetPipelineEntry(ctx context.Context, id string) (model.PipelineEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok, nil
}

func (m *Memory) ListPipelineEntries(ctx context.Context, f EntryFilter) ([]model.PipelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PipelineEntry
	for _, e := range m.entries {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Stage != "" && e.Stage != f.Stage {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) AdvancePipelineStage(ctx context.Context, id string, from, to model.Stage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if e.Stage != from {
		return false, nil
	}
	e.Stage = to
	e.UpdatedAt = time.Now().UTC()
	m.entries[id] = e
	return true, nil
}

func (m *Memory) SaveCredibilityScore(ctx context.Context, score model.CredibilityScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.SourceID] = score
	m.trends[score.SourceID] = append(m.trends[score.SourceID], model.TrendPoint{At: score.ComputedAt, Overall: score.Overall})
	return nil
}

func (m *Memory) GetCredibilityScore(ctx context.Context, sourceID string) (model.CredibilityScore, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[sourceID]
	return s, ok, nil
}

func (m *Memory) CredibilityTrend(ctx context.Context, sourceID string, limit int) ([]model.TrendPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pts := m.trends[sourceID]
	if limit > 0 && len(pts) > limit {
		pts = pts[len(pts)-limit:]
	}
	out := make([]model.TrendPoint, len(pts))
	copy(out, pts)
	return out, nil
}

func (m *Memory) GetSourceStats(ctx context.Context, sourceID string) (model.SourceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[sourceID]
	if !ok {
		return model.SourceStats{SourceID: sourceID}, nil
	}
	return st, nil
}

func (m *Memory) UpsertSourceStats(ctx context.Context, stats model.SourceStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.SourceID] = stats
	return nil
}
