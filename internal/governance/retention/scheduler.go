package retention

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs a retention pass over every opted-in user.
type Sweeper interface {
	RunAutoDeleteForAllUsers(ctx context.Context) (BatchResult, error)
}

// Scheduler runs a sweep once at startup and then on every tick until its
// context is cancelled.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
}

func NewScheduler(sweeper Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{sweeper: sweeper, interval: interval}
}

// Start launches the scheduler goroutine. The returned channel is closed
// once the goroutine exits.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("retention: scheduler started", "interval", s.interval)
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention: scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.sweeper.RunAutoDeleteForAllUsers(ctx); err != nil {
		slog.Error("retention: scheduled sweep failed", "error", err)
	}
}
