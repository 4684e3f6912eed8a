package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Overlap policies for ticks that come due while the previous one still runs.
const (
	OverlapSkip       = "skip"
	OverlapConcurrent = "concurrent"
)

// Task is one tick of work.
type Task func(ctx context.Context) error

// Options configure the trigger.
type Options struct {
	// Interval between ticks. The first tick fires one interval after Start.
	Interval time.Duration
	// Cron, when set, replaces Interval with a cron expression.
	Cron string
	// Overlap is OverlapSkip or OverlapConcurrent.
	Overlap string
	// TickTimeout bounds each tick's context; zero means no deadline.
	TickTimeout time.Duration
}

// Stats counts tick outcomes since Start.
type Stats struct {
	Started   int64
	Succeeded int64
	Failed    int64
	Skipped   int64
}

// Scheduler periodically runs a task. Errors and panics from the task are
// logged and never stop later ticks.
type Scheduler struct {
	scheduler *gocron.Scheduler
	task      Task
	opts      Options
	logger    *zap.Logger

	busy      *atomic.Bool
	started   *atomic.Int64
	succeeded *atomic.Int64
	failed    *atomic.Int64
	skipped   *atomic.Int64
}

// New creates a new Scheduler.
func New(opts Options, task Task, logger *zap.Logger) (*Scheduler, error) {
	if task == nil {
		return nil, errors.New("scheduler: task is nil")
	}
	if opts.Cron == "" && opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", opts.Interval)
	}
	switch opts.Overlap {
	case "":
		opts.Overlap = OverlapSkip
	case OverlapSkip, OverlapConcurrent:
	default:
		return nil, fmt.Errorf("scheduler: unknown overlap policy %q", opts.Overlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		task:      task,
		opts:      opts,
		logger:    logger.Named("scheduler"),
		busy:      atomic.NewBool(false),
		started:   atomic.NewInt64(0),
		succeeded: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		skipped:   atomic.NewInt64(0),
	}, nil
}

// Start schedules the periodic job and starts the underlying scheduler
// without blocking.
func (s *Scheduler) Start() error {
	var job *gocron.Scheduler
	if s.opts.Cron != "" {
		job = s.scheduler.Cron(s.opts.Cron)
	} else {
		job = s.scheduler.Every(s.opts.Interval).WaitForSchedule()
	}

	if _, err := job.Tag("ingest").Do(s.tick); err != nil {
		return fmt.Errorf("scheduler: schedule job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.String("cron", s.opts.Cron),
		zap.String("overlap", s.opts.Overlap),
	)
	return nil
}

// RunNow triggers an immediate tick outside the schedule. It goes through
// the same overlap policy as scheduled ticks.
func (s *Scheduler) RunNow() {
	s.scheduler.RunAll()
}

// Stop stops the scheduler and cancels any future jobs. Running ticks finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Stats returns a snapshot of the tick counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Started:   s.started.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
	}
}

// tick is the gocron job body.
func (s *Scheduler) tick() {
	if s.opts.Overlap == OverlapSkip {
		if !s.busy.CAS(false, true) {
			s.skipped.Inc()
			s.logger.Warn("previous tick still running; skipping")
			return
		}
		defer s.busy.Store(false)
	}

	s.runTask()
}

func (s *Scheduler) runTask() {
	tickID := uuid.NewString()
	logger := s.logger.With(zap.String("tick", tickID))
	s.started.Inc()

	ctx := context.Background()
	if s.opts.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TickTimeout)
		defer cancel()
	}

	begin := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.failed.Inc()
			logger.Error("tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	logger.Debug("tick started")
	if err := s.task(ctx); err != nil {
		s.failed.Inc()
		logger.Error("tick failed", zap.Error(err), zap.Duration("took", time.Since(begin)))
		return
	}
	s.succeeded.Inc()
	logger.Info("tick completed", zap.Duration("took", time.Since(begin)))
}
