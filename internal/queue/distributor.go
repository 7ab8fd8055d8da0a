package queue

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/store"
)

// Assignment pairs one pending task with the agent chosen for it.
type Assignment struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
}

// Distributor greedily assigns unassigned pending tasks to eligible agents.
// Running it twice over an unchanged pending set yields the same assignments.
type Distributor struct {
	store store.Store
	log   *log.Logger
}

// NewDistributor returns a distributor over the given store.
func NewDistributor(st store.Store, logger *log.Logger) *Distributor {
	if logger == nil {
		logger = log.Default()
	}
	return &Distributor{store: st, log: logger}
}

// Distribute walks pending unassigned tasks in priority order and assigns
// each to the eligible agent carrying the least active work. A failure on one
// task is logged and does not abort the rest of the run.
func (d *Distributor) Distribute(ctx context.Context) ([]Assignment, error) {
	tasks, err := d.store.QueryTasks(ctx, store.TaskFilter{
		Status:     model.TaskStatusPending,
		Unassigned: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	agents, err := d.store.ListAgents(ctx, store.AgentFilter{OnlyActive: true})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	// deterministic tie-breaking: creation order, then id
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID < agents[j].ID
	})

	loads := make(map[string]int, len(agents))
	for _, a := range agents {
		n, err := d.store.CountActiveTasks(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("count active tasks for %s: %w", a.ID, err)
		}
		loads[a.ID] = n
	}

	var out []Assignment
	for _, task := range tasks {
		agent, ok := pickAgent(task, agents, loads)
		if !ok {
			continue
		}
		won, err := d.store.AssignTask(ctx, task.ID, agent.ID)
		if err != nil {
			d.log.Printf("[QUEUE] assign task %s to %s: %v", task.ID, agent.ID, err)
			continue
		}
		if !won {
			// claimed or assigned concurrently
			continue
		}
		loads[agent.ID]++
		metricAssigned.Inc()
		out = append(out, Assignment{TaskID: task.ID, AgentID: agent.ID})
	}
	return out, nil
}

// pickAgent returns the least-loaded agent whose capabilities cover the
// task's requirements and whose category matches when the task names one.
// Ties fall to the earlier agent in the pre-sorted slice.
func pickAgent(task model.Task, agents []model.Agent, loads map[string]int) (model.Agent, bool) {
	var best model.Agent
	bestLoad, found := 0, false
	for _, a := range agents {
		if task.Category != "" && a.Type != task.Category {
			continue
		}
		if !hasCapabilities(a.Capabilities, task.RequiredCaps) {
			continue
		}
		if !found || loads[a.ID] < bestLoad {
			best, bestLoad, found = a, loads[a.ID], true
		}
	}
	return best, found
}

func hasCapabilities(have, need []string) bool {
	if len(need) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, c := range need {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}
