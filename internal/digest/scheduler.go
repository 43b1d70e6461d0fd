package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/domain"
	"github.com/phrazzld/tasks-api/internal/job"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/robfig/cron/v3"
)

// DueLister lists the schedules whose report time is clock ("HH:MM").
type DueLister interface {
	ListDue(ctx context.Context, clock string) ([]*domain.ReportSchedule, error)
}

// Scheduler enqueues digest jobs for the schedules that are due.
// A user receives at most one digest per minute however often Tick runs.
type Scheduler struct {
	schedules DueLister
	counter   PendingCounter
	mailer    Mailer
	queue     job.QueueWriter
	from      string
	now       func() time.Time
	logger    *slog.Logger

	cron *cron.Cron

	mu   sync.Mutex
	sent map[uuid.UUID]time.Time
}

// SchedulerConfig wires a Scheduler.
type SchedulerConfig struct {
	Schedules DueLister
	Counter   PendingCounter
	Mailer    Mailer
	Queue     job.QueueWriter
	From      string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg SchedulerConfig, log *slog.Logger) (*Scheduler, error) {
	if cfg.Schedules == nil || cfg.Counter == nil || cfg.Mailer == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("digest scheduler: schedules, counter, mailer and queue are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		schedules: cfg.Schedules,
		counter:   cfg.Counter,
		mailer:    cfg.Mailer,
		queue:     cfg.Queue,
		from:      cfg.From,
		now:       cfg.Now,
		logger:    log.With(slog.String("component", "digest_scheduler")),
		sent:      make(map[uuid.UUID]time.Time),
	}, nil
}

// Tick enqueues a job for every schedule due at the current minute that has
// not been handled this minute yet. It returns the number of jobs enqueued.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	minute := s.now().Truncate(time.Minute)
	clock := domain.ReportClock(minute)

	due, err := s.schedules.ListDue(ctx, clock)
	if err != nil {
		log.Error("failed to list due report schedules",
			slog.String("error", err.Error()),
			slog.String("clock", clock))
		return 0, fmt.Errorf("listing due schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, at := range s.sent {
		if at.Before(minute) {
			delete(s.sent, id)
		}
	}

	enqueued := 0
	for _, sch := range due {
		if !sch.Enabled() {
			continue
		}
		if at, ok := s.sent[sch.UserID]; ok && at.Equal(minute) {
			continue
		}
		if err := s.queue.Enqueue(NewJob(*sch, s.counter, s.mailer, s.from)); err != nil {
			log.Warn("failed to enqueue digest",
				slog.String("error", err.Error()),
				slog.String("user_id", sch.UserID.String()))
			continue
		}
		s.sent[sch.UserID] = minute
		enqueued++
	}

	if enqueued > 0 {
		log.Info("digests enqueued",
			slog.String("clock", clock),
			slog.Int("count", enqueued))
	}
	return enqueued, nil
}

// Start runs Tick on the cron spec (for example "@every 30s") until Stop.
func (s *Scheduler) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	ctx := logger.WithLogger(context.Background(), s.logger)
	if _, err := c.AddFunc(spec, func() {
		_, _ = s.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("digest scheduler started", slog.String("schedule", spec))
	return nil
}

// Stop stops the cron and waits for a running Tick to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("digest scheduler stopped")
}
