package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepInterval is used when NewSweeper is given a non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// cleaner is the part of Engine the sweeper drives.
type cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired records. A failed cycle is logged and
// retried on the next tick; it never stops the schedule.
type Sweeper struct {
	target   cleaner
	interval time.Duration
	timeout  time.Duration
	sched    *cron.Cron
	logger   *zap.Logger
}

// NewSweeper creates a Sweeper that calls target.CleanupExpired every interval.
func NewSweeper(target cleaner, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := 30 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start schedules the sweep and returns immediately. The first cycle runs
// one interval after Start.
func (s *Sweeper) Start() error {
	s.sched = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger}),
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))
	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.sched.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx) //nolint:errcheck
	}); err != nil {
		return fmt.Errorf("schedule otp sweep: %w", err)
	}
	s.sched.Start()
	s.logger.Info("otp sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish or for ctx
// to be done.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.sched == nil {
		return
	}
	select {
	case <-s.sched.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("otp sweeper stop timed out", zap.Error(ctx.Err()))
	}
}

// RunOnce performs a single sweep. Errors are logged and returned.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.target.CleanupExpired(ctx)
	if err != nil {
		s.logger.Warn("otp cleanup error", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
