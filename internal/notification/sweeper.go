package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper deletes notifications older than the retention period on a fixed
// interval.
type Sweeper struct {
	store     Store
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewSweeper(store Store, interval, retention time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    logger.Named("sweeper"),
	}
}

// Run sweeps once immediately, then every interval until ctx is done. It
// returns at once when interval or retention is not positive, since a zero
// retention would delete the whole feed.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 || s.retention <= 0 {
		s.logger.Error("retention sweep disabled: interval and retention must be positive",
			zap.Duration("interval", s.interval), zap.Duration("retention", s.retention))
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Info("retention sweep", zap.Int("deleted", n), zap.Time("cutoff", cutoff))
	}
}
