// Package main is the entry point for the Seedling engine worker.
//
// The worker owns the background half of the recommendation engine:
//   - weekly plan generation every Sunday evening
//   - nightly suggestion refresh for every active child
//   - plan evolution checks for very active children
//   - monthly per-child analytics digests
//
// It also hosts the completion feedback loop: activity-completed
// events advance skill statuses, close plan entries and retire
// suggestions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/seedlinghq/seedling-engine/config"
	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/application/eventhandler"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/messaging"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/postgres"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/redis"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/scheduler"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting seedling engine worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to redis...")
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			if cfg.IsProduction() {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			log.Warn("failed to connect to redis, falling back to in-process mode", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	childRepo := postgres.NewChildRepository(dbConn)
	ownerRepo := postgres.NewOwnerRepository(dbConn)
	statusRepo := postgres.NewStatusRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	suggestionRepo := postgres.NewSuggestionRepository(dbConn)
	logRepo := postgres.NewRecommendationLogRepository(dbConn)
	planRepo := postgres.NewPlanRepository(dbConn)
	analyticsRepo := postgres.NewAnalyticsRepository(dbConn)

	var catalogRepo catalog.Repository = postgres.NewCatalogRepository(dbConn)
	if redisCache != nil {
		catalogRepo = redis.NewCachedCatalogRepository(
			catalogRepo,
			redis.NewCatalogCache(redisCache),
			cfg.Redis.CatalogCacheTTL,
		)
	}

	var processedEvents progress.ProcessedEventStore
	if redisCache != nil {
		processedEvents = redis.NewProcessedEventStore(redisCache)
	} else {
		processedEvents = memory.NewProcessedEventStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS AND DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.AsyncMode = cfg.EventBus.AsyncMode
	localBusCfg.Logger = log

	var eventBus shared.EventBus
	if redisCache != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSub(redisCache),
			ChannelName:    cfg.EventBus.ChannelName,
			InstanceID:     cfg.EventBus.InstanceID,
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		defer bus.Close()
		eventBus = bus
	} else {
		bus := messaging.NewInMemoryEventBus(localBusCfg)
		defer bus.Close()
		eventBus = bus
	}

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	completedHandler := eventhandler.NewOnActivityCompletedHandler(
		statusRepo, planRepo, suggestionRepo, logRepo,
		processedEvents, eventBus, log,
		eventhandler.DefaultActivityCompletedConfig(),
	)
	if err := dispatcher.Register(
		shared.EventActivityCompleted,
		"on_activity_completed",
		completedHandler.Handle,
	); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	refreshHandler := command.NewRefreshSuggestionsHandler(
		childRepo, catalogRepo, statusRepo, progressRepo,
		suggestionRepo, logRepo, eventBus,
	)
	weeklyHandler := command.NewGenerateWeeklyPlanHandler(
		childRepo, ownerRepo, catalogRepo, statusRepo,
		progressRepo, suggestionRepo, planRepo, eventBus,
	)
	evolveHandler := command.NewEvolvePlansHandler(childRepo, progressRepo, weeklyHandler)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        log,
		EnableMetrics: true,
	})
	sched.OnJobComplete(func(result scheduler.JobResult) {
		event := shared.NewBatchRunCompletedEvent(
			result.JobName,
			result.Success,
			result.Duration,
			0, 0,
		)
		if err := eventBus.Publish(event); err != nil {
			log.Warn("failed to publish batch run event", "job", result.JobName, "error", err)
		}
	})

	jobConcurrency := cfg.Scheduler.MaxConcurrentChildren
	jobTimeout := cfg.Scheduler.JobTimeout

	if cfg.Scheduler.WeeklyPlansEnabled && cfg.Features.IsEnabled(config.FeaturePlanBatchGeneration, nil) {
		planJobCfg := jobs.DefaultGenerateWeeklyPlansConfig()
		planJobCfg.Concurrency = jobConcurrency
		planJobCfg.Timeout = jobTimeout
		planJob := jobs.NewGenerateWeeklyPlansJob(
			childRepo, catalogRepo, statusRepo, progressRepo,
			suggestionRepo, planRepo, eventBus, log, nil, planJobCfg,
		)
		if err := sched.Register(planJob, scheduler.MustParseCronExpression(scheduler.WeeklyPlanSchedule)); err != nil {
			return fmt.Errorf("failed to register weekly plans job: %w", err)
		}
	}

	if cfg.Scheduler.RefreshEnabled && cfg.Features.IsEnabled(config.FeatureRecommendationRefresh, nil) {
		refreshJobCfg := jobs.DefaultRefreshRecommendationsConfig()
		refreshJobCfg.Concurrency = jobConcurrency
		refreshJobCfg.Timeout = jobTimeout
		refreshJob := jobs.NewRefreshRecommendationsJob(childRepo, refreshHandler, log, refreshJobCfg)
		if err := sched.Register(refreshJob, scheduler.MustParseCronExpression(scheduler.RefreshSchedule)); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}
	}

	if cfg.Scheduler.EvolutionEnabled && cfg.Features.IsEnabled(config.FeaturePlanEvolution, nil) {
		evolveJobCfg := jobs.DefaultEvolvePlansConfig()
		evolveJobCfg.Concurrency = jobConcurrency
		evolveJobCfg.Timeout = jobTimeout
		evolveJob := jobs.NewEvolvePlansJob(childRepo, evolveHandler, log, evolveJobCfg)
		if err := sched.Register(evolveJob, scheduler.MustParseCronExpression(scheduler.EvolutionSchedule)); err != nil {
			return fmt.Errorf("failed to register evolution job: %w", err)
		}
	}

	if cfg.Scheduler.MonthlyAnalyticsEnabled && cfg.Features.IsEnabled(config.FeatureAnalyticsMonthly, nil) {
		analyticsJobCfg := jobs.DefaultMonthlyAnalyticsConfig()
		analyticsJobCfg.Concurrency = jobConcurrency
		analyticsJob := jobs.NewMonthlyAnalyticsJob(
			ownerRepo, childRepo, catalogRepo, statusRepo,
			progressRepo, analyticsRepo, log, analyticsJobCfg,
		)
		if err := sched.Register(analyticsJob, scheduler.MustParseCronExpression(scheduler.MonthlyAnalyticsSchedule)); err != nil {
			return fmt.Errorf("failed to register analytics job: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started", "jobs", len(sched.ListJobs()))
	} else {
		log.Warn("scheduler is disabled, worker will only react to events")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("seedling engine worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// setupLogger configures structured logging from the observability
// section.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
