// Package scheduler runs the pipeline on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/notify"
	"github.com/spigell/hire-responder/internal/pipeline"
)

// ErrStopped is returned by Trigger once Run has begun shutting down.
var ErrStopped = errors.New("scheduler is stopping")

type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Stats, error)
}

type Config struct {
	Interval       time.Duration
	RunImmediately bool
	Options        pipeline.Options
}

type Scheduler struct {
	cfg       Config
	runner    Runner
	publisher notify.Publisher
	logger    *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	// mu orders wg.Add against the shutdown wait.
	mu       sync.Mutex
	stopping bool
}

func New(cfg Config, runner Runner, publisher notify.Publisher, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}

	return &Scheduler{
		cfg:       cfg,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Running reports whether a run started by this scheduler is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Run blocks until ctx is done and any in-flight run has finished. Runs are
// not interrupted by ctx cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("run_immediately", s.cfg.RunImmediately),
	)

	if s.cfg.RunImmediately {
		s.tick(runCtx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for the in-flight run")
			s.mu.Lock()
			s.stopping = true
			s.mu.Unlock()
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.tick(runCtx)
		}
	}
}

// Trigger starts a run in the background, detached from any request. It
// returns pipeline.ErrAlreadyRunning when one is already in flight and
// ErrStopped after Run has started shutting down.
func (s *Scheduler) Trigger() error {
	if err := s.acquire(); err != nil {
		return err
	}

	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute(context.Background())
	}()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.acquire(); err != nil {
		s.logger.Warn("run skipped", zap.Error(err))
		return
	}

	defer s.wg.Done()
	defer s.running.Store(false)

	s.execute(ctx)
}

// acquire marks a run as in flight. The caller must call wg.Done and reset
// running when the run ends.
func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return pipeline.ErrAlreadyRunning
	}

	s.wg.Add(1)
	return nil
}

func (s *Scheduler) execute(ctx context.Context) {
	stats, err := s.runner.Run(ctx, s.cfg.Options)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		s.logger.Warn("pipeline already running, skipping")
		return
	}
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}

	if stats == nil {
		return
	}

	if err := s.publisher.Publish(ctx, stats); err != nil {
		s.logger.Error("failed to publish run summary", zap.String("run_id", stats.RunID), zap.Error(err))
	}
}
