package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"genqueue/internal/domain/plancfg"
	"genqueue/internal/http/handlers"
	"genqueue/internal/http/httpapi"
	"genqueue/internal/infra"
	"genqueue/internal/infra/geoip"
	"genqueue/internal/middleware"
	"genqueue/internal/providers/generation"
	"genqueue/internal/queue"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.MigrateOnStart {
		if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("api: migrations failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	catalog, err := plancfg.Load(cfg.PlanConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: plan catalog failed to load")
	}

	var notifier queue.Notifier
	if cfg.RedisURL != "" {
		redisNotifier, err := queue.NewRedisNotifier(cfg.RedisURL, cfg.NudgeChannel, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("api: redis nudge unavailable, scheduler runs on tick only")
		} else {
			defer redisNotifier.Close()
			notifier = redisNotifier
		}
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip resolver unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	enqueueSvc := queue.NewEnqueueService(runner, catalog, notifier, logger)
	backends := generation.BuildRegistry(cfg, logger)
	scheduler := queue.NewScheduler(runner, backends, queue.SchedulerOptions{
		Budget:      cfg.SchedulerBudget,
		CallTimeout: cfg.BackendTimeout,
		MaxRuntime:  cfg.MaxJobRuntime,
	}, logger)

	app := handlers.NewApp(runner, enqueueSvc, scheduler, cfg.SchedulerToken, logger)

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countryLookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  allowedOrigins(),
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}

func allowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
