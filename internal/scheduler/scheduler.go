package scheduler

import (
	"context"
	"sync"
	"time"

	"jobspider/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobspider/scheduler")

// Runner executes one crawl run for the given wall-clock time.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) error
}

// Scheduler triggers crawl runs on a fixed interval: one run immediately on
// Start, then one per tick until the context is cancelled.
type Scheduler struct {
	runner   Runner
	logger   *zap.Logger
	interval time.Duration
	mutex    sync.Mutex
	isActive bool
}

func New(runner Runner, logger *zap.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Scheduler.Start")
	defer span.End()

	s.mutex.Lock()
	if s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = true
	s.mutex.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.run(ctx); err != nil {
		s.logger.Error("initial run failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				s.logger.Error("scheduled run failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isActive = false
}

func (s *Scheduler) run(ctx context.Context) error {
	now := time.Now()
	s.logger.Info("starting crawl run", zap.Time("run_time", now))

	if err := s.runner.RunOnce(ctx, now); err != nil {
		return err
	}

	s.logger.Info("crawl run launched", zap.Time("run_time", now))
	return nil
}
