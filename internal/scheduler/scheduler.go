// Package scheduler decides which agents are due to run and enqueues fetch
// tasks for their sources. Due-ness is a pure function of the agent's
// schedule and the clock so it can be tested without a store.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/store"
)

const (
	// timesTolerance is the window around a configured wall-clock time in
	// which the agent counts as due.
	timesTolerance = 5 * time.Minute

	// timesCooldown prevents re-triggering within the same wall-clock window.
	timesCooldown = time.Hour

	lockKey = "newsflow:scheduler:lock"
	lockTTL = 2 * time.Minute
)

// Options tune one scheduler run.
type Options struct {
	// Force bypasses the agent due-check. Source fetch intervals still apply.
	Force bool
	// AgentID restricts the run to a single agent.
	AgentID string
}

// RunResult summarizes one scheduler pass.
type RunResult struct {
	AgentsEvaluated int `json:"agents_evaluated"`
	AgentsRun       int `json:"agents_run"`
	TasksCreated    int `json:"tasks_created"`
	AgentErrors     int `json:"agent_errors"`
}

// Scheduler evaluates agent schedules and feeds the task queue.
type Scheduler struct {
	store    store.Store
	queue    *queue.Queue
	rdb      *redis.Client
	log      *log.Logger
	interval time.Duration
	now      func() time.Time
}

// New returns a scheduler. rdb may be nil; the distributed run lock is then
// skipped, which is fine for single-instance deployments.
func New(st store.Store, q *queue.Queue, rdb *redis.Client, logger *log.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{store: st, queue: q, rdb: rdb, log: logger, interval: interval, now: time.Now}
}

// Start runs scheduler passes on a ticker until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.acquireLock(ctx) {
				continue
			}
			res, err := s.Run(ctx, Options{})
			s.releaseLock(ctx)
			if err != nil {
				s.log.Printf("[SCHED] run failed: %v", err)
				continue
			}
			if res.AgentsRun > 0 || res.AgentErrors > 0 {
				s.log.Printf("[SCHED] run: agents=%d tasks=%d errors=%d", res.AgentsRun, res.TasksCreated, res.AgentErrors)
			}
		}
	}
}

func (s *Scheduler) acquireLock(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		s.log.Printf("[SCHED] lock acquire failed, proceeding without: %v", err)
		return true
	}
	return ok
}

func (s *Scheduler) releaseLock(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, lockKey).Err(); err != nil {
		s.log.Printf("[SCHED] lock release failed: %v", err)
	}
}

// Run evaluates every active agent (or one, when opts.AgentID is set) and
// enqueues a fetch task per eligible source of every due agent. An error on
// one agent is counted and logged but does not stop the others.
func (s *Scheduler) Run(ctx context.Context, opts Options) (RunResult, error) {
	var res RunResult

	agents, err := s.selectAgents(ctx, opts)
	if err != nil {
		return res, err
	}

	now := s.now()
	for _, agent := range agents {
		res.AgentsEvaluated++
		if !opts.Force && !IsDue(agent, now) {
			continue
		}
		created, err := s.runAgent(ctx, agent, now)
		if err != nil {
			res.AgentErrors++
			s.log.Printf("[SCHED] agent %s (%s): %v", agent.Name, agent.ID, err)
			continue
		}
		res.AgentsRun++
		res.TasksCreated += created
	}
	return res, nil
}

func (s *Scheduler) selectAgents(ctx context.Context, opts Options) ([]model.Agent, error) {
	if opts.AgentID != "" {
		agent, ok, err := s.store.GetAgent(ctx, opts.AgentID)
		if err != nil {
			return nil, fmt.Errorf("load agent %s: %w", opts.AgentID, err)
		}
		if !ok {
			return nil, store.ErrNotFound
		}
		return []model.Agent{agent}, nil
	}
	agents, err := s.store.ListAgents(ctx, store.AgentFilter{OnlyActive: true})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// runAgent enqueues fetch tasks for the agent's eligible sources and stamps
// last_run_at. The stamp happens even when no source needed fetching, so the
// agent does not re-trigger within the same window.
func (s *Scheduler) runAgent(ctx context.Context, agent model.Agent, now time.Time) (int, error) {
	sources, err := s.store.ListSources(ctx, store.SourceFilter{AgentID: agent.ID, OnlyActive: true})
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}

	created := 0
	for _, src := range sources {
		if !sourceEligible(src, now) {
			continue
		}
		task := model.Task{
			Type:      model.TaskTypeFetch,
			Priority:  model.PriorityNormal,
			AgentID:   agent.ID,
			SourceID:  src.ID,
			SourceURL: src.URL,
			Category:  agent.Type,
			Metadata:  map[string]any{"source_type": string(src.Type)},
		}
		if _, err := s.queue.Enqueue(ctx, task); err != nil {
			return created, fmt.Errorf("enqueue fetch for source %s: %w", src.ID, err)
		}
		created++
	}

	if err := s.store.UpdateAgentLastRun(ctx, agent.ID, now); err != nil {
		return created, fmt.Errorf("update last_run_at: %w", err)
	}
	return created, nil
}

func sourceEligible(src model.Source, now time.Time) bool {
	if src.FetchInterval <= 0 || src.LastFetchedAt == nil {
		return true
	}
	return !now.Before(src.LastFetchedAt.Add(src.FetchInterval))
}

// IsDue reports whether an agent's schedule fires at the given instant. All
// configured constraints are conjunctive; an absent constraint imposes no
// restriction.
func IsDue(agent model.Agent, now time.Time) bool {
	sched := agent.Schedule
	if !agent.IsActive || !sched.Enabled {
		return false
	}

	if len(sched.DaysOfWeek) > 0 && !weekdayIn(now.Weekday(), sched.DaysOfWeek) {
		return false
	}

	if sched.Interval > 0 {
		if agent.LastRunAt != nil && now.Before(agent.LastRunAt.Add(sched.Interval)) {
			return false
		}
	}

	if len(sched.Times) > 0 {
		if !withinTimesWindow(sched.Times, now) {
			return false
		}
		if agent.LastRunAt != nil && now.Sub(*agent.LastRunAt) < timesCooldown {
			return false
		}
	}

	if spec := strings.TrimSpace(sched.Cron); spec != "" {
		expr, err := cronexpr.Parse(spec)
		if err != nil {
			return false
		}
		last := now.Add(-time.Minute)
		if agent.LastRunAt != nil {
			last = *agent.LastRunAt
		}
		next := expr.Next(last)
		if next.IsZero() || next.After(now) {
			return false
		}
	}

	return true
}

func withinTimesWindow(times []string, now time.Time) bool {
	for _, t := range times {
		parsed, err := time.Parse("15:04", strings.TrimSpace(t))
		if err != nil {
			continue
		}
		slot := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		diff := now.Sub(slot)
		if diff < 0 {
			diff = -diff
		}
		if diff <= timesTolerance {
			return true
		}
	}
	return false
}

func weekdayIn(day time.Weekday, days []time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
