// Package queue implements the task queue and the greedy task distributor.
// Claiming is the central correctness point: the store's compare-and-swap on
// task status guarantees exactly one worker wins a given task.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/store"
)

// DefaultMaxRetries bounds how many times a failed task returns to pending.
const DefaultMaxRetries = 3

// Queue fronts the store's task operations with queue semantics.
type Queue struct {
	store store.Store
	now   func() time.Time
}

// New returns a queue backed by the given store.
func New(st store.Store) *Queue {
	return &Queue{store: st, now: time.Now}
}

// Enqueue persists a new pending task and returns its id.
func (q *Queue) Enqueue(ctx context.Context, task model.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Status = model.TaskStatusPending
	if task.Priority == 0 {
		task.Priority = model.PriorityNormal
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = DefaultMaxRetries
	}
	now := q.now()
	task.CreatedAt, task.UpdatedAt = now, now

	if err := q.store.CreateTask(ctx, &task); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	metricEnqueued.WithLabelValues(string(task.Type)).Inc()
	return task.ID, nil
}

// Claim hands the caller the highest-priority pending task it is allowed to
// take, or (zero, false) when none is available. Concurrent callers racing
// for the same task are resolved by the store's compare-and-swap; losers move
// on to the next candidate.
func (q *Queue) Claim(ctx context.Context, agentID string, taskType model.TaskType) (model.Task, bool, error) {
	candidates, err := q.store.QueryTasks(ctx, store.TaskFilter{
		Status:       model.TaskStatusPending,
		Type:         taskType,
		AssignableTo: agentID,
		Limit:        16,
	})
	if err != nil {
		return model.Task{}, false, fmt.Errorf("query pending tasks: %w", err)
	}

	for _, candidate := range candidates {
		won, err := q.store.ClaimTask(ctx, candidate.ID, agentID)
		if err != nil {
			return model.Task{}, false, fmt.Errorf("claim task %s: %w", candidate.ID, err)
		}
		if !won {
			continue
		}
		metricClaimed.WithLabelValues(string(candidate.Type)).Inc()
		task, ok, err := q.store.GetTask(ctx, candidate.ID)
		if err != nil || !ok {
			return model.Task{}, false, fmt.Errorf("reload claimed task %s: %w", candidate.ID, err)
		}
		return task, true, nil
	}
	return model.Task{}, false, nil
}

// MarkProcessing moves a claimed task to processing.
func (q *Queue) MarkProcessing(ctx context.Context, taskID string) error {
	swapped, err := q.store.SetTaskStatus(ctx, taskID, model.TaskStatusClaimed, model.TaskStatusProcessing)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("task %s is not claimed", taskID)
	}
	return nil
}

// Complete records a task's result and marks it completed.
func (q *Queue) Complete(ctx context.Context, taskID string, result map[string]any) error {
	if err := q.store.CompleteTask(ctx, taskID, result); err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	metricCompleted.Inc()
	return nil
}

// Fail records a categorized failure. The task returns to pending while
// retries remain, otherwise it lands in terminal failed.
func (q *Queue) Fail(ctx context.Context, taskID string, terr model.TaskError) error {
	task, ok, err := q.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}

	retryCount := task.RetryCount + 1
	status := model.TaskStatusPending
	if retryCount >= task.MaxRetries {
		status = model.TaskStatusFailed
	}
	if terr.At.IsZero() {
		terr.At = q.now()
	}

	if err := q.store.RecordTaskFailure(ctx, taskID, terr, status, retryCount); err != nil {
		return fmt.Errorf("record task failure %s: %w", taskID, err)
	}
	if status == model.TaskStatusFailed {
		metricFailed.WithLabelValues(terr.Category).Inc()
	} else {
		metricRetried.Inc()
	}
	return nil
}
