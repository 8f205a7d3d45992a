package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sweeper runs Manager.Sweep on a fixed interval until its context ends.
type Sweeper struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	running  atomic.Bool
}

func NewSweeper(manager *Manager, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{manager: manager, ttl: ttl, interval: interval, logger: logger}
}

// Start blocks, sweeping once immediately and then on every tick.
func (s *Sweeper) Start(ctx context.Context) {
	if s.ttl <= 0 {
		s.logger.Info("sweeper disabled", "reason", "output_ttl is 0")
		return
	}
	if s.running.Swap(true) {
		return
	}
	defer s.running.Store(false)

	s.logger.Info("sweeper started", "ttl", s.ttl.String(), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.manager.Sweep(ctx, s.ttl); err != nil && ctx.Err() == nil {
		s.logger.Error("sweep failed", "error", err)
	}
}
