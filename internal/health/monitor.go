// Package health aggregates per-agent task outcomes into health scores.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/store"
)

// Window is the trailing period over which outcomes are aggregated.
const Window = 24 * time.Hour

// Monitor reads task statistics and produces AgentHealth summaries.
type Monitor struct {
	store store.Store
	now   func() time.Time
}

// NewMonitor returns a monitor over the given store.
func NewMonitor(st store.Store) *Monitor {
	return &Monitor{store: st, now: time.Now}
}

// Health reports the trailing-window health of every active agent, or of one
// agent when agentID is non-empty. A stats failure for one agent is recorded
// on its entry; the rest of the report still comes back.
func (m *Monitor) Health(ctx context.Context, agentID string) ([]model.AgentHealth, error) {
	agents, err := m.selectAgents(ctx, agentID)
	if err != nil {
		return nil, err
	}

	since := m.now().Add(-Window)
	out := make([]model.AgentHealth, 0, len(agents))
	for _, agent := range agents {
		h := model.AgentHealth{AgentID: agent.ID, AgentName: agent.Name}
		completed, failed, err := m.store.TaskStats(ctx, agent.ID, since)
		if err != nil {
			h.Error = err.Error()
			out = append(out, h)
			continue
		}
		h.Completed = completed
		h.Failed = failed
		h.SuccessRate = successRate(completed, failed)
		h.HealthScore = Score(completed, failed)
		out = append(out, h)
	}
	return out, nil
}

func (m *Monitor) selectAgents(ctx context.Context, agentID string) ([]model.Agent, error) {
	if agentID != "" {
		agent, ok, err := m.store.GetAgent(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("load agent %s: %w", agentID, err)
		}
		if !ok {
			return nil, store.ErrNotFound
		}
		return []model.Agent{agent}, nil
	}
	agents, err := m.store.ListAgents(ctx, store.AgentFilter{OnlyActive: true})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

func successRate(completed, failed int) float64 {
	total := completed + failed
	if total == 0 {
		return 1
	}
	return float64(completed) / float64(total)
}

// Score blends success rate with failure volume. A quiet agent scores 1.
func Score(completed, failed int) float64 {
	total := completed + failed
	if total == 0 {
		return 1
	}
	rate := float64(completed) / float64(total)
	return 0.7*rate + 0.3*(1-float64(failed)/float64(total))
}
