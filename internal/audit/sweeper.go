package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper promotes orphaned Pending entries to Success.
//
// A Pending row only becomes visible once its transaction commits, so any
// Pending row older than the cutoff belongs to an operation that committed
// but crashed before MarkSuccess ran.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	minAge   time.Duration
}

func NewSweeper(store Store, logger *slog.Logger, interval, minAge time.Duration) *Sweeper {
	return &Sweeper{store: store, logger: logger, interval: interval, minAge: minAge}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "audit sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one promotion pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.minAge)
	promoted, err := s.store.PromotePendingBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if promoted > 0 {
		s.logger.InfoContext(ctx, "promoted stale audit entries", "count", promoted)
	}
	return nil
}
