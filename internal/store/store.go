// Package store defines the persistence boundary for the ingestion engine and
// ships two implementations: Postgres for deployments and an in-memory store
// used as the test double. Both honor the same conditional-update semantics,
// which the task queue relies on for its at-most-one-claim guarantee.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
)

// ErrNotFound is returned by mutating operations targeting a missing record.
var ErrNotFound = errors.New("store: not found")

// AgentFilter constrains ListAgents.
type AgentFilter struct {
	OnlyActive bool
	Type       string
}

// SourceFilter constrains ListSources.
type SourceFilter struct {
	AgentID    string
	OnlyActive bool
}

// TaskFilter constrains QueryTasks. Results are ordered by priority descending
// then created_at ascending (FIFO within priority).
type TaskFilter struct {
	Status model.TaskStatus
	Type   model.TaskType
	// AssignableTo matches tasks assigned to the given agent or not yet
	// assigned to anyone.
	AssignableTo string
	// AgentID matches tasks assigned to exactly this agent.
	AgentID string
	// Unassigned restricts to tasks with no agent.
	Unassigned bool
	Limit      int
}

// EntryFilter constrains ListPipelineEntries.
type EntryFilter struct {
	Category string
	Stage    model.Stage
	Since    time.Time
	Limit    int
}

// Store is the abstract persistence interface. Any store offering equality
// filters, ordering, limits and an atomic compare-and-swap on task status and
// pipeline stage satisfies it.
type Store interface {
	// Agents.
	CreateAgent(ctx context.Context, a *model.Agent) error
	GetAgent(ctx context.Context, id string) (model.Agent, bool, error)
	ListAgents(ctx context.Context, f AgentFilter) ([]model.Agent, error)
	UpdateAgentLastRun(ctx context.Context, id string, t time.Time) error

	// Sources.
	CreateSource(ctx context.Context, s *model.Source) error
	GetSource(ctx context.Context, id string) (model.Source, bool, error)
	ListSources(ctx context.Context, f SourceFilter) ([]model.Source, error)
	// RecordSourceSuccess resets the source's error count, stamps
	// last_fetched_at and folds the observed response time into its stats.
	RecordSourceSuccess(ctx context.Context, id string, at time.Time, responseTime time.Duration) error
	// RecordSourceFailure increments the error count and records the last
	// error, independent of whether the owning task will retry.
	RecordSourceFailure(ctx context.Context, id string, msg string, at time.Time) error

	// Tasks.
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (model.Task, bool, error)
	QueryTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)
	// ClaimTask atomically moves a pending task to claimed for the given
	// agent. Exactly one concurrent caller observes true.
	ClaimTask(ctx context.Context, taskID, agentID string) (bool, error)
	// AssignTask sets the agent on a pending, unassigned task without
	// claiming it. Used by the distributor; losers observe false.
	AssignTask(ctx context.Context, taskID, agentID string) (bool, error)
	// SetTaskStatus performs a compare-and-swap on status.
	SetTaskStatus(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error)
	CompleteTask(ctx context.Context, taskID string, result map[string]any) error
	RecordTaskFailure(ctx context.Context, taskID string, terr model.TaskError, status model.TaskStatus, retryCount int) error
	// CountActiveTasks returns the number of claimed+processing tasks held by
	// an agent, the distributor's load signal.
	CountActiveTasks(ctx context.Context, agentID string) (int, error)
	// TaskStats counts completed and failed tasks for an agent since the
	// given instant.
	TaskStats(ctx context.Context, agentID string, since time.Time) (completed, failed int, err error)

	// Pipeline entries.
	CreatePipelineEntry(ctx context.Context, e *model.PipelineEntry) error
	GetPipelineEntry(ctx context.Context, id string) (model.PipelineEntry, bool, error)
	ListPipelineEntries(ctx context.Context, f EntryFilter) ([]model.PipelineEntry, error)
	// AdvancePipelineStage performs a compare-and-swap on stage.
	AdvancePipelineStage(ctx context.Context, id string, from, to model.Stage) (bool, error)

	// Credibility.
	SaveCredibilityScore(ctx context.Context, score model.CredibilityScore) error
	GetCredibilityScore(ctx context.Context, sourceID string) (model.CredibilityScore, bool, error)
	CredibilityTrend(ctx context.Context, sourceID string, limit int) ([]model.TrendPoint, error)
	GetSourceStats(ctx context.Context, sourceID string) (model.SourceStats, error)
	UpsertSourceStats(ctx context.Context, stats model.SourceStats) error
}
