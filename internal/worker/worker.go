// Package worker runs the processing loop: claim a task, execute it, commit
// the outcome. Fetch tasks pull content from a source and push survivors into
// the pipeline; analyze tasks advance admitted entries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/newsflow-io/newsflow/internal/fetch"
	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/pipeline"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/store"
)

// DefaultPollInterval is the idle sleep between claim sweeps.
const DefaultPollInterval = 5 * time.Second

// Runner drives a fixed number of concurrent workers over the task queue.
type Runner struct {
	store    store.Store
	queue    *queue.Queue
	fetcher  *fetch.Client
	tracker  *pipeline.Tracker
	log      *log.Logger
	workers  int
	poll     time.Duration
	now      func() time.Time
}

// NewRunner wires a runner. workers <= 0 falls back to 1.
func NewRunner(st store.Store, q *queue.Queue, fc *fetch.Client, tr *pipeline.Tracker, logger *log.Logger, workers int, poll time.Duration) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Runner{
		store:   st,
		queue:   q,
		fetcher: fc,
		tracker: tr,
		log:     logger,
		workers: workers,
		poll:    poll,
		now:     time.Now,
	}
}

// Start blocks until the context is canceled, running the configured number
// of worker goroutines.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		worked, err := r.Sweep(ctx)
		if err != nil {
			r.log.Printf("[WORKER %d] sweep: %v", id, err)
		}
		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.poll):
		}
	}
}

// Sweep claims and processes at most one task per active agent. It reports
// whether any task was processed.
func (r *Runner) Sweep(ctx context.Context) (bool, error) {
	agents, err := r.store.ListAgents(ctx, store.AgentFilter{OnlyActive: true})
	if err != nil {
		return false, fmt.Errorf("list agents: %w", err)
	}

	worked := false
	for _, agent := range agents {
		task, ok, err := r.queue.Claim(ctx, agent.ID, "")
		if err != nil {
			r.log.Printf("[WORKER] claim for agent %s: %v", agent.ID, err)
			continue
		}
		if !ok {
			continue
		}
		worked = true
		r.Process(ctx, agent, task)
	}
	return worked, nil
}

// Process executes one claimed task and commits its outcome. Task failures
// are recorded through the queue's retry accounting, never returned.
func (r *Runner) Process(ctx context.Context, agent model.Agent, task model.Task) {
	if err := r.queue.MarkProcessing(ctx, task.ID); err != nil {
		r.log.Printf("[WORKER] task %s: %v", task.ID, err)
		return
	}

	var (
		result map[string]any
		err    error
	)
	switch task.Type {
	case model.TaskTypeFetch:
		result, err = r.processFetch(ctx, agent, task)
	case model.TaskTypeAnalyze:
		result, err = r.processAnalyze(ctx, task)
	default:
		err = fmt.Errorf("unknown task type %q", task.Type)
	}

	if err != nil {
		cat := fetch.Classify(err)
		if failErr := r.queue.Fail(ctx, task.ID, model.TaskError{
			Category: string(cat),
			Message:  err.Error(),
			At:       r.now(),
		}); failErr != nil {
			r.log.Printf("[WORKER] task %s: record failure: %v", task.ID, failErr)
		}
		r.log.Printf("[WORKER] task %s (%s) failed: %v", task.ID, task.Type, err)
		return
	}

	if err := r.queue.Complete(ctx, task.ID, result); err != nil {
		r.log.Printf("[WORKER] task %s: %v", task.ID, err)
	}
}

// processFetch pulls content from the task's source, records source health,
// and admits each surviving item into the pipeline.
func (r *Runner) processFetch(ctx context.Context, agent model.Agent, task model.Task) (map[string]any, error) {
	src, ok, err := r.store.GetSource(ctx, task.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", task.SourceID, err)
	}
	if !ok {
		return nil, fmt.Errorf("source %s: %w", task.SourceID, store.ErrNotFound)
	}

	started := r.now()
	items, err := r.fetcher.Fetch(ctx, src)
	if err != nil {
		if recErr := r.store.RecordSourceFailure(ctx, src.ID, err.Error(), r.now()); recErr != nil {
			r.log.Printf("[WORKER] source %s: record failure: %v", src.ID, recErr)
		}
		return nil, err
	}
	if err := r.store.RecordSourceSuccess(ctx, src.ID, r.now(), r.now().Sub(started)); err != nil {
		r.log.Printf("[WORKER] source %s: record success: %v", src.ID, err)
	}

	admitted, duplicates, discarded := 0, 0, 0
	for _, item := range items {
		res, err := r.tracker.Admit(ctx, agent, src, item)
		if err != nil {
			return nil, fmt.Errorf("admit %q: %w", item.Title, err)
		}
		switch {
		case res.Admitted:
			admitted++
		case res.Duplicate != nil:
			duplicates++
		default:
			discarded++
		}
	}

	return map[string]any{
		"fetched":    len(items),
		"admitted":   admitted,
		"duplicates": duplicates,
		"discarded":  discarded,
	}, nil
}

// processAnalyze advances the task's pipeline entry out of the fetched stage.
func (r *Runner) processAnalyze(ctx context.Context, task model.Task) (map[string]any, error) {
	entryID, _ := task.Metadata["entry_id"].(string)
	if entryID == "" {
		return nil, errors.New("analyze task missing entry_id")
	}
	if err := r.tracker.Advance(ctx, entryID, model.StageAnalyzed); err != nil {
		return nil, fmt.Errorf("advance entry %s: %w", entryID, err)
	}
	return map[string]any{"entry_id": entryID, "stage": string(model.StageAnalyzed)}, nil
}
