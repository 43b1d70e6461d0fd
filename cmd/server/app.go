package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasks-api/internal/cascade"
	"github.com/phrazzld/tasks-api/internal/config"
	"github.com/phrazzld/tasks-api/internal/digest"
	"github.com/phrazzld/tasks-api/internal/idempotency"
	"github.com/phrazzld/tasks-api/internal/job"
	"github.com/phrazzld/tasks-api/internal/platform/postgres"
	"github.com/phrazzld/tasks-api/internal/platform/sqlite"
	"github.com/phrazzld/tasks-api/internal/service"
	"github.com/phrazzld/tasks-api/internal/service/auth"
	"github.com/phrazzld/tasks-api/internal/store"
	"github.com/redis/go-redis/v9"
)

// drainTimeout bounds how long shutdown waits for queued digests.
const drainTimeout = 30 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db      *sql.DB
	closeDB func()

	// Stores
	tasks     store.TaskStore
	schedules store.ReportScheduleStore

	// Services
	jwtService    auth.JWTService
	taskService   service.TaskService
	reportService service.ReportService

	// Optional idempotency keys; nil when no Redis URL is configured
	redis   *redis.Client
	deduper idempotency.Deduper

	// Digest runtime
	queue     *job.Queue
	pool      *job.WorkerPool
	scheduler *digest.Scheduler
}

// newApplication creates a new application instance with all dependencies initialized.
// On error every resource opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *application, err error) {
	app = &application{
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			app.cleanup()
			app = nil
		}
	}()

	app.db, app.closeDB, err = openDatabase(ctx, cfg, logger)
	if err != nil {
		return app, err
	}

	switch cfg.Database.Driver {
	case "sqlite":
		sdb := sqlxFor(app.db)
		app.tasks = sqlite.NewTaskStore(sdb, logger)
		app.schedules = sqlite.NewReportScheduleStore(sdb, logger)
	default:
		lockTimeout := time.Duration(cfg.Cascade.LockTimeoutMS) * time.Millisecond
		app.tasks = postgres.NewPostgresTaskStore(app.db, lockTimeout, logger)
		app.schedules = postgres.NewPostgresReportScheduleStore(app.db, logger)
	}

	mode, err := cascade.ParseMode(cfg.Cascade.Mode)
	if err != nil {
		return app, fmt.Errorf("invalid cascade mode: %w", err)
	}
	engine := cascade.NewEngine(mode, logger)

	retryPolicy := store.DefaultRetryPolicy()
	retryPolicy.MaxRetries = cfg.Cascade.MaxRetries

	app.taskService, err = service.NewTaskService(app.db, app.tasks, engine, retryPolicy, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create task service: %w", err)
	}

	app.reportService, err = service.NewReportService(app.schedules, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create report service: %w", err)
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return app, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	if cfg.Redis.URL != "" {
		app.redis, err = idempotency.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return app, err
		}
		ttl := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
		app.deduper = idempotency.NewRedisDeduper(app.redis, ttl)
		logger.Info("idempotency keys enabled", slog.Duration("ttl", ttl))
	}

	if err := app.setupDigest(); err != nil {
		return app, err
	}

	logger.Info("application initialized successfully",
		slog.String("cascade_mode", mode.String()),
		slog.Int("max_retries", retryPolicy.MaxRetries))
	return app, nil
}

// setupDigest builds the queue, worker pool and scheduler. Nothing runs until
// Run or runDigestOnce starts it.
func (app *application) setupDigest() error {
	cfg := app.config

	var mailer digest.Mailer
	if cfg.SMTP.Host == "" {
		mailer = digest.NewLogMailer(app.logger)
		app.logger.Info("no SMTP host configured, digests will be logged")
	} else {
		smtpMailer, err := digest.NewSMTPMailer(digest.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to create SMTP mailer: %w", err)
		}
		mailer = smtpMailer
	}

	app.queue = job.NewQueue(cfg.Digest.QueueSize, app.logger)
	app.pool = job.NewWorkerPool(app.queue, job.WorkerPoolConfig{
		WorkerCount: cfg.Digest.WorkerCount,
		JobTimeout:  time.Minute,
	}, app.logger)

	scheduler, err := digest.NewScheduler(digest.SchedulerConfig{
		Schedules: app.schedules,
		Counter:   app.tasks,
		Mailer:    mailer,
		Queue:     app.queue,
		From:      cfg.Digest.From,
	}, app.logger)
	if err != nil {
		return err
	}
	app.scheduler = scheduler
	return nil
}

// Run starts the digest scheduler (when enabled) and serves HTTP until ctx is
// cancelled.
func (app *application) Run(ctx context.Context) error {
	if app.config.Digest.Enabled {
		app.pool.Start()
		if err := app.scheduler.Start(app.config.Digest.Schedule); err != nil {
			return err
		}
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runDigestOnce processes the digests due now and waits for them to finish.
func (app *application) runDigestOnce(ctx context.Context) (int, error) {
	app.pool.Start()

	n, err := app.scheduler.Tick(ctx)
	app.queue.Close()

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if drainErr := app.pool.Drain(drainCtx); drainErr != nil {
		err = errors.Join(err, fmt.Errorf("waiting for digests: %w", drainErr))
	}
	return n, err
}

// cleanup handles graceful shutdown of application resources.
// It is safe to call on a partially initialized application.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.queue != nil {
		app.queue.Close()
	}
	if app.pool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := app.pool.Drain(drainCtx); err != nil {
			app.logger.Warn("digest queue not drained before shutdown", slog.String("error", err.Error()))
		}
		cancel()
		app.pool.Stop()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", err.Error()))
		}
	}
	if app.closeDB != nil {
		app.closeDB()
	}

	app.logger.Info("application shutdown completed")
}
