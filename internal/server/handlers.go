package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/scheduler"
	"github.com/newsflow-io/newsflow/internal/store"
)

// Handler serves the trigger and fetch endpoints.
type Handler struct {
	Deps *Deps
}

// Register mounts the API routes on the given group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/trigger", h.Trigger)
	g.POST("/fetch", h.Fetch)
	g.GET("/sources/:id/credibility", h.SourceCredibility)
	g.GET("/pipeline", h.PipelineEntries)
}

type triggerRequest struct {
	Action  string `json:"action"`
	Force   bool   `json:"force"`
	AgentID string `json:"agent_id"`
}

// Trigger dispatches one of the operational actions: run the scheduler,
// report health, distribute pending tasks, or summarize system status.
func (h *Handler) Trigger(c echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	switch req.Action {
	case "run_scheduled":
		res, err := h.Deps.Scheduler.Run(ctx, scheduler.Options{Force: req.Force, AgentID: req.AgentID})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "agent not found")
			}
			return err
		}
		return c.JSON(http.StatusOK, res)

	case "check_health":
		report, err := h.Deps.Health.Health(ctx, req.AgentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "agent not found")
			}
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"agents": report})

	case "distribute_tasks":
		assignments, err := h.Deps.Distributor.Distribute(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"assigned":    len(assignments),
			"assignments": assignments,
		})

	case "get_status":
		return h.status(c)

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
}

func (h *Handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.Deps.Store.ListAgents(ctx, store.AgentFilter{})
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, status := range []model.TaskStatus{
		model.TaskStatusPending,
		model.TaskStatusClaimed,
		model.TaskStatusProcessing,
		model.TaskStatusCompleted,
		model.TaskStatusFailed,
	} {
		tasks, err := h.Deps.Store.QueryTasks(ctx, store.TaskFilter{Status: status})
		if err != nil {
			return err
		}
		counts[string(status)] = len(tasks)
	}

	entries, err := h.Deps.Store.ListPipelineEntries(ctx, store.EntryFilter{
		Since: time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"agents":           len(agents),
		"tasks":            counts,
		"entries_last_24h": len(entries),
	})
}

type fetchRequest struct {
	TaskID     string             `json:"task_id"`
	URL        string             `json:"url"`
	SourceType model.SourceType   `json:"source_type"`
	Config     model.SourceConfig `json:"config"`
}

// Fetch pulls content immediately, either for an existing task's source or
// for an ad-hoc url/source_type pair, and returns the normalized items.
func (h *Handler) Fetch(c echo.Context) error {
	var req fetchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	var src model.Source
	switch {
	case req.TaskID != "":
		task, ok, err := h.Deps.Store.GetTask(ctx, req.TaskID)
		if err != nil {
			return err
		}
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		src, ok, err = h.Deps.Store.GetSource(ctx, task.SourceID)
		if err != nil {
			return err
		}
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "source not found")
		}
	case req.URL != "" && req.SourceType != "":
		src = model.Source{
			URL:    req.URL,
			Type:   req.SourceType,
			Config: req.Config,
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "task_id or url+source_type required")
	}

	items, err := h.Deps.Fetcher.Fetch(ctx, src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

// SourceCredibility recomputes and returns the source's credibility score
// with its recent trend.
func (h *Handler) SourceCredibility(c echo.Context) error {
	ctx := c.Request().Context()
	sourceID := c.Param("id")

	score, err := h.Deps.Credibility.Score(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "source not found")
		}
		return err
	}
	trend, err := h.Deps.Store.CredibilityTrend(ctx, sourceID, 30)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"score": score,
		"trend": trend,
	})
}

// PipelineEntries lists recent entries, optionally filtered by category and
// stage.
func (h *Handler) PipelineEntries(c echo.Context) error {
	f := store.EntryFilter{
		Category: c.QueryParam("category"),
		Stage:    model.Stage(c.QueryParam("stage")),
		Limit:    100,
	}
	entries, err := h.Deps.Store.ListPipelineEntries(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
