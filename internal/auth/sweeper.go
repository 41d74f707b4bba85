package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically compacts the session registry so abandoned logins
// do not accumulate forever. Missing a sweep never affects correctness;
// token validation only consults registry membership.
type Sweeper struct {
	registry *Registry
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSweeper constructs a background sweeper over the registry.
func NewSweeper(registry *Registry, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		registry: registry,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop. It runs until Stop is called.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.registry.SweepExpired(ctx, s.maxAge)
				if err != nil {
					s.logger.Error("session sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					s.logger.Info("swept expired sessions", "removed", removed)
				}
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}
