package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reclaims rooms that stayed empty past the registry's
// grace period.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewSweeper(log *slog.Logger, registry *Registry, interval time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	const op = "service.sweeper.run"
	log := s.log.With(slog.String("op", op))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info("sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sweeper) Sweep() []string {
	return s.registry.SweepExpired(s.now())
}
