// Package server exposes the engine's HTTP surface: the trigger and fetch
// endpoints plus health and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/newsflow-io/newsflow/config"
	"github.com/newsflow-io/newsflow/internal/credibility"
	"github.com/newsflow-io/newsflow/internal/fetch"
	"github.com/newsflow-io/newsflow/internal/health"
	"github.com/newsflow-io/newsflow/internal/pipeline"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/scheduler"
	"github.com/newsflow-io/newsflow/internal/store"
)

// Run wires the full engine and serves HTTP until the listener fails.
func Run(ctx context.Context, cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	st, err := store.NewPostgres(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var rdb *redis.Client
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", addr, err)
		}
	}

	deps := BuildDeps(cfg, st, rdb)

	api := e.Group("/api")
	h := &Handler{Deps: deps}
	h.Register(api)

	if cfg.Scheduler.Enabled {
		go deps.Scheduler.Start(ctx)
	}
	if iv := cfg.Credibility.RescoreInterval; iv > 0 {
		go rescoreLoop(ctx, deps.Credibility, iv, log.New(log.Writer(), "[CRED] ", log.LstdFlags))
	}

	addr := cfg.Server.Address
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func rescoreLoop(ctx context.Context, eng *credibility.Engine, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := eng.RescoreAll(ctx)
			if err != nil {
				logger.Printf("credibility rescore: scored %d: %v", n, err)
			}
		}
	}
}

// Deps bundles the engine components shared by the HTTP handlers and the
// background loops.
type Deps struct {
	Store       store.Store
	Queue       *queue.Queue
	Distributor *queue.Distributor
	Fetcher     *fetch.Client
	Tracker     *pipeline.Tracker
	Scheduler   *scheduler.Scheduler
	Health      *health.Monitor
	Credibility *credibility.Engine
}

// BuildDeps assembles the component graph over one store. The worker binary
// reuses it without the HTTP surface.
func BuildDeps(cfg *config.Config, st store.Store, rdb *redis.Client) *Deps {
	var limiter fetch.Limiter
	limit := fetch.LimitConfig{
		MaxRequests: cfg.Fetch.RequestsPerWindow,
		Window:      cfg.Fetch.Window,
	}
	if rdb != nil {
		limiter = fetch.NewRedisLimiter(rdb, limit)
	} else {
		limiter = fetch.NewWindowLimiter(limit)
	}

	attemptTimeout := cfg.Fetch.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 15 * time.Second
	}
	fc := fetch.NewClient(fetch.Options{
		Limiter:        limiter,
		AttemptTimeout: attemptTimeout,
	})

	tr := pipeline.NewTracker(st)
	if cfg.Pipeline.QualityThreshold > 0 {
		tr.QualityThreshold = cfg.Pipeline.QualityThreshold
	}
	if cfg.Dedup.WindowSpan > 0 {
		tr.DedupWindow = cfg.Dedup.WindowSpan
	}
	if cfg.Dedup.Threshold > 0 {
		tr.Dedup.Threshold = cfg.Dedup.Threshold
	}

	q := queue.New(st)
	schedLogger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	queueLogger := log.New(log.Writer(), "[QUEUE] ", log.LstdFlags)

	return &Deps{
		Store:       st,
		Queue:       q,
		Distributor: queue.NewDistributor(st, queueLogger),
		Fetcher:     fc,
		Tracker:     tr,
		Scheduler:   scheduler.New(st, q, rdb, schedLogger, cfg.Scheduler.Interval),
		Health:      health.NewMonitor(st),
		Credibility: credibility.NewEngine(st),
	}
}
