package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/newsflow-io/newsflow/config"
	srv "github.com/newsflow-io/newsflow/internal/server"
	"github.com/newsflow-io/newsflow/internal/store"
	"github.com/newsflow-io/newsflow/internal/worker"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	var workers int
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Run task processing workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			deps := srv.BuildDeps(cfg, st, rdb)
			count := workers
			if count <= 0 {
				count = cfg.Worker.Count
			}
			logger := log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
			runner := worker.NewRunner(st, deps.Queue, deps.Fetcher, deps.Tracker, logger, count, cfg.Worker.PollInterval)
			log.Printf("starting %d workers", count)
			runner.Start(ctx)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = from config)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
