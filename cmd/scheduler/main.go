package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genqueue/internal/infra"
	"genqueue/internal/providers/generation"
	"genqueue/internal/queue"
)

// The scheduler daemon runs one bounded queue pass per tick and one per wake
// nudge. Passes hold no in-memory state, so overlapping daemons are safe.
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	backends := generation.BuildRegistry(cfg, logger)
	scheduler := queue.NewScheduler(runner, backends, queue.SchedulerOptions{
		Budget:      cfg.SchedulerBudget,
		CallTimeout: cfg.BackendTimeout,
		MaxRuntime:  cfg.MaxJobRuntime,
	}, logger)

	var nudges <-chan string
	if cfg.RedisURL != "" {
		notifier, err := queue.NewRedisNotifier(cfg.RedisURL, cfg.NudgeChannel, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("scheduler: redis nudge unavailable, running on tick only")
		} else {
			defer notifier.Close()
			nudges = notifier.Subscribe(ctx)
		}
	}

	logger.Info().
		Dur("tick", cfg.SchedulerTick).
		Dur("budget", cfg.SchedulerBudget).
		Msg("scheduler: started")

	if err := run(ctx, scheduler, cfg.SchedulerTick, nudges, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("scheduler: stopped with error")
	}
	logger.Info().Msg("scheduler: stopped")
}

func run(ctx context.Context, scheduler *queue.Scheduler, tick time.Duration, nudges <-chan string, logger infra.Logger) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		trigger := ""
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			trigger = "tick"
		case payload, ok := <-nudges:
			if !ok {
				nudges = nil
				continue
			}
			trigger = "nudge:" + payload
		}

		if _, err := scheduler.Run(ctx, trigger); err != nil {
			logger.Error().Err(err).Str("trigger", trigger).Msg("scheduler: pass failed")
		}
	}
}
