package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/tasks-api/internal/platform/logger"
)

// WorkerPool manages a pool of worker goroutines that process jobs
// from a queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// queue provides read access to the jobs to be processed
	queue QueueReader

	// config holds the worker count and per-job timeout
	config WorkerPoolConfig

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger

	// errorHandler is called when a job fails. If nil, errors are only logged.
	errorHandler func(job Job, err error)

	startOnce sync.Once
	stopOnce  sync.Once
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// JobTimeout bounds a single Execute call. Zero means no timeout.
	JobTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		JobTimeout:  time.Minute,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(queue QueueReader, config WorkerPoolConfig, log *slog.Logger) *WorkerPool {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "worker_pool"))

	if config.WorkerCount <= 0 {
		log.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
		config.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, log)

	return &WorkerPool{
		queue:  queue,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		logger: log,
	}
}

// SetErrorHandler sets a handler for job failures. Call it before Start.
func (p *WorkerPool) SetErrorHandler(handler func(job Job, err error)) {
	p.errorHandler = handler
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.config.WorkerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		p.logger.Info("worker pool started", slog.Int("worker_count", p.config.WorkerCount))
	})
}

// Stop cancels running jobs and waits for the workers to exit.
// Jobs still in the queue are not processed.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})
}

// Drain waits until the queue is closed and every queued job has run, or ctx ends.
func (p *WorkerPool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", slog.Int("worker_id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", slog.Int("worker_id", id))
			return

		case job, ok := <-p.queue.Channel():
			if !ok {
				p.logger.Debug("job channel closed, stopping worker", slog.Int("worker_id", id))
				return
			}
			p.process(job, id)
		}
	}
}

func (p *WorkerPool) process(job Job, workerID int) {
	log := p.logger.With(
		slog.String("job_id", job.ID().String()),
		slog.String("job_type", job.Type()),
		slog.Int("worker_id", workerID),
	)

	ctx := logger.WithLogger(p.ctx, log)
	if p.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.execute(ctx, job)
	if err != nil {
		log.Error("job execution failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		if p.errorHandler != nil {
			p.errorHandler(job, err)
		}
		return
	}

	log.Debug("job completed", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

// execute runs the job, turning a panic into an error so one bad job cannot
// take a worker down.
func (p *WorkerPool) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(ctx)
}
