// Package main is planctl, the operational CLI of the Seedling engine.
//
// It runs the scheduled jobs on demand against the configured database,
// which covers backfills, reprocessing after incidents, and local
// development without waiting for cron boundaries:
//
//	planctl migrate up|down|status
//	planctl plan [-week 2026-03-02] [-child <id>]
//	planctl refresh [-child <id>]
//	planctl recommend -child <id> [-limit 5]
//	planctl evolve
//	planctl report [-month 2026-02]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/seedlinghq/seedling-engine/config"
	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/application/query"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/messaging"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/postgres"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/scheduler/jobs"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "planctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: planctl <command> [flags]

commands:
  migrate up|down|status            manage the database schema
  plan [-week YYYY-MM-DD] [-child]  generate weekly plans (default: next week, all children)
  refresh [-child]                  refresh suggestions (default: every active child)
  recommend -child <id> [-limit]    list current recommendations for one child
  evolve                            rebuild plans for very active children
  report [-month YYYY-MM]           generate monthly reports (default: last month)`)
}

func run(cmd string, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	app := &app{ctx: ctx, cfg: cfg, log: log, db: dbConn}

	switch cmd {
	case "migrate":
		return app.migrate(args)
	case "plan":
		return app.plan(args)
	case "refresh":
		return app.refresh(args)
	case "recommend":
		return app.recommend(args)
	case "evolve":
		return app.evolve()
	case "report":
		return app.report(args)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app bundles the shared wiring of every subcommand. Jobs run against
// a local-only event bus; planctl is a one-shot process and remote
// instances will observe the resulting rows, not the events.
type app struct {
	ctx context.Context
	cfg *config.Config
	log *slog.Logger
	db  *postgres.Connection
}

func (a *app) migrate(args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	migrator := postgres.NewMigrator(a.db)

	switch action {
	case "up":
		if err := migrator.Migrate(a.ctx); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("schema is up to date")
		return nil
	case "down":
		if err := migrator.Rollback(a.ctx); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("rolled back one migration")
		return nil
	case "status":
		applied, err := migrator.Status(a.ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		for _, m := range applied {
			fmt.Printf("%3d  %s\n", m.Version, m.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}
}

func (a *app) plan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	week := fs.String("week", "", "week to plan, as its Monday (YYYY-MM-DD)")
	childID := fs.String("child", "", "plan only this child")
	if err := fs.Parse(args); err != nil {
		return err
	}

	weekStart := timeutil.NextWeekStart(time.Now().UTC())
	if *week != "" {
		t, err := time.Parse("2006-01-02", *week)
		if err != nil {
			return fmt.Errorf("invalid -week %q: %w", *week, err)
		}
		weekStart = timeutil.StartOfWeek(t)
	}

	deps := a.deps()

	if *childID != "" {
		handler := command.NewGenerateWeeklyPlanHandler(
			deps.childRepo, deps.ownerRepo, deps.catalogRepo, deps.statusRepo,
			deps.progressRepo, deps.suggestionRepo, deps.planRepo, deps.bus,
		)
		res, err := handler.Handle(a.ctx, command.GenerateWeeklyPlanCommand{
			ChildID:     shared.ChildID(*childID),
			WeekOf:      weekStart,
			GeneratedBy: "on_demand",
		})
		if err != nil {
			return err
		}
		fmt.Printf("plan %s: %d suggestions, %d fillers\n",
			res.Plan.ID, res.SuggestionsPlaced, res.FillersPlaced)
		return nil
	}

	jobCfg := jobs.DefaultGenerateWeeklyPlansConfig()
	jobCfg.Concurrency = a.cfg.Scheduler.MaxConcurrentChildren
	job := jobs.NewGenerateWeeklyPlansJob(
		deps.childRepo, deps.catalogRepo, deps.statusRepo, deps.progressRepo,
		deps.suggestionRepo, deps.planRepo, deps.bus, a.log, nil, jobCfg,
	)

	if err := job.RunForWeek(a.ctx, weekStart); err != nil {
		return err
	}
	fmt.Printf("planned week of %s\n", weekStart.Format("2006-01-02"))
	return nil
}

func (a *app) refresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	childID := fs.String("child", "", "refresh only this child")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps := a.deps()
	handler := command.NewRefreshSuggestionsHandler(
		deps.childRepo, deps.catalogRepo, deps.statusRepo, deps.progressRepo,
		deps.suggestionRepo, deps.logRepo, deps.bus,
	)

	if *childID != "" {
		res, err := handler.Handle(a.ctx, command.RefreshSuggestionsCommand{
			ChildID: shared.ChildID(*childID),
			Now:     time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		fmt.Printf("child %s: %d evaluated, %d created, %d updated\n",
			*childID, res.Evaluated, res.Created, res.Updated)
		return nil
	}

	jobCfg := jobs.DefaultRefreshRecommendationsConfig()
	jobCfg.Concurrency = a.cfg.Scheduler.MaxConcurrentChildren
	job := jobs.NewRefreshRecommendationsJob(deps.childRepo, handler, a.log, jobCfg)

	if err := job.Run(a.ctx); err != nil {
		return err
	}
	fmt.Println("suggestions refreshed")
	return nil
}

func (a *app) recommend(args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	childID := fs.String("child", "", "child to list recommendations for (required)")
	limit := fs.Int("limit", 0, "max recommendations to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *childID == "" {
		return fmt.Errorf("recommend: -child is required")
	}

	deps := a.deps()
	handler := query.NewGetRecommendationsHandler(deps.suggestionRepo, deps.catalogRepo)
	res, err := handler.Handle(a.ctx, query.GetRecommendationsQuery{
		ChildID: shared.ChildID(*childID),
		Limit:   *limit,
	})
	if err != nil {
		return err
	}

	if len(res.Recommendations) == 0 {
		fmt.Println("no pending recommendations")
		return nil
	}
	for _, r := range res.Recommendations {
		fmt.Printf("%5.1f  %-30s  %-15s  %s\n", r.Priority, r.Name, r.Area, r.Reason)
	}
	if res.SkippedMissing > 0 {
		fmt.Printf("(%d suggestions skipped: activity missing from catalog)\n", res.SkippedMissing)
	}
	return nil
}

func (a *app) evolve() error {
	deps := a.deps()
	weekly := command.NewGenerateWeeklyPlanHandler(
		deps.childRepo, deps.ownerRepo, deps.catalogRepo, deps.statusRepo,
		deps.progressRepo, deps.suggestionRepo, deps.planRepo, deps.bus,
	)
	handler := command.NewEvolvePlansHandler(deps.childRepo, deps.progressRepo, weekly)
	job := jobs.NewEvolvePlansJob(deps.childRepo, handler, a.log, jobs.DefaultEvolvePlansConfig())

	if err := job.Run(a.ctx); err != nil {
		return err
	}
	fmt.Println("plan evolution pass completed")
	return nil
}

func (a *app) report(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	month := fs.String("month", "", "month to report on (YYYY-MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// RunForMonth covers the month before its argument.
	runAt := time.Now().UTC()
	if *month != "" {
		t, err := time.Parse("2006-01", *month)
		if err != nil {
			return fmt.Errorf("invalid -month %q: %w", *month, err)
		}
		runAt = t.AddDate(0, 1, 0)
	}

	deps := a.deps()
	jobCfg := jobs.DefaultMonthlyAnalyticsConfig()
	jobCfg.Concurrency = a.cfg.Scheduler.MaxConcurrentChildren
	job := jobs.NewMonthlyAnalyticsJob(
		deps.ownerRepo, deps.childRepo, deps.catalogRepo, deps.statusRepo,
		deps.progressRepo, deps.analyticsRepo, a.log, jobCfg,
	)

	if err := job.RunForMonth(a.ctx, runAt); err != nil {
		return err
	}
	from, _ := timeutil.PreviousMonthRange(runAt)
	fmt.Printf("reports generated for %s\n", from.Format("2006-01"))
	return nil
}

type wiring struct {
	childRepo      *postgres.ChildRepository
	ownerRepo      *postgres.OwnerRepository
	catalogRepo    *postgres.CatalogRepository
	statusRepo     *postgres.StatusRepository
	progressRepo   *postgres.ProgressRepository
	suggestionRepo *postgres.SuggestionRepository
	logRepo        *postgres.RecommendationLogRepository
	planRepo       *postgres.PlanRepository
	analyticsRepo  *postgres.AnalyticsRepository
	bus            *messaging.InMemoryEventBus
}

func (a *app) deps() *wiring {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = false
	busCfg.Logger = a.log

	return &wiring{
		childRepo:      postgres.NewChildRepository(a.db),
		ownerRepo:      postgres.NewOwnerRepository(a.db),
		catalogRepo:    postgres.NewCatalogRepository(a.db),
		statusRepo:     postgres.NewStatusRepository(a.db),
		progressRepo:   postgres.NewProgressRepository(a.db),
		suggestionRepo: postgres.NewSuggestionRepository(a.db),
		logRepo:        postgres.NewRecommendationLogRepository(a.db),
		planRepo:       postgres.NewPlanRepository(a.db),
		analyticsRepo:  postgres.NewAnalyticsRepository(a.db),
		bus:            messaging.NewInMemoryEventBus(busCfg),
	}
}
