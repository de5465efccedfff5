package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
)

// Options configures a Limiter.
type Options struct {
	MaxRequests  int64
	Window       time.Duration
	StoreTimeout time.Duration
	KeyPrefix    string
}

// DefaultOptions is 15 scoring calls per admin per 120s window.
func DefaultOptions() Options {
	return Options{
		MaxRequests:  15,
		Window:       120 * time.Second,
		StoreTimeout: 500 * time.Millisecond,
		KeyPrefix:    "ratelimit:analyze:",
	}
}

// Status is a read-only snapshot of one principal's window.
type Status struct {
	Limit     int64         `json:"limit"`
	Remaining int64         `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in_ns"`
}

// Limiter is a fixed-window counter per principal. It fails closed: when the
// store is unreachable callers get domain.ErrRateLimiterUnavailable, never
// an "allowed".
type Limiter struct {
	store  Store
	opts   Options
	logger *zap.Logger
}

func New(store Store, opts Options, logger *zap.Logger) *Limiter {
	def := DefaultOptions()
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = def.MaxRequests
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = def.KeyPrefix
	}
	return &Limiter{store: store, opts: opts, logger: logger.Named("ratelimit")}
}

func (l *Limiter) Options() Options { return l.opts }

func (l *Limiter) key(principalID string) string {
	return l.opts.KeyPrefix + principalID
}

func (l *Limiter) unavailable(op, principalID string, err error) error {
	decisionsTotal.WithLabelValues("unavailable").Inc()
	l.logger.Error("rate limit store failure",
		zap.String("op", op),
		zap.String("principal", principalID),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w: %v", op, domain.ErrRateLimiterUnavailable, err)
}

// Allow counts one request for principalID and reports whether it fits in the
// current window. The increment happens even when the answer is false.
func (l *Limiter) Allow(ctx context.Context, principalID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.StoreTimeout)
	defer cancel()

	count, err := l.increment(ctx, l.key(principalID))
	if err != nil {
		return false, l.unavailable("allow", principalID, err)
	}
	if count > l.opts.MaxRequests {
		decisionsTotal.WithLabelValues("limited").Inc()
		l.logger.Debug("rate limited", zap.String("principal", principalID), zap.Int64("count", count))
		return false, nil
	}
	decisionsTotal.WithLabelValues("allowed").Inc()
	return true, nil
}

// increment prefers the store's single-step operation. Otherwise the expiry
// is written right after the increment; ExpireIfUnset only touches keys
// without a TTL, so running it on every hit also repairs an expiry lost to a
// crash between the two calls.
func (l *Limiter) increment(ctx context.Context, key string) (int64, error) {
	if as, ok := l.store.(AtomicStore); ok {
		return as.IncrementWithExpiry(ctx, key, l.opts.Window)
	}
	count, err := l.store.Increment(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := l.store.ExpireIfUnset(ctx, key, l.opts.Window); err != nil {
		return 0, err
	}
	return count, nil
}

// Guard is Allow for business callers: nil when allowed, a
// *domain.RateLimitExceededError carrying the retry delay when not.
func (l *Limiter) Guard(ctx context.Context, principalID string) error {
	ok, err := l.Allow(ctx, principalID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	retry, err := l.TimeUntilReset(ctx, principalID)
	if err != nil || retry <= 0 {
		retry = l.opts.Window
	}
	return &domain.RateLimitExceededError{RetryAfter: retry}
}

// Status returns limit, remaining and reset delay from a single store read.
func (l *Limiter) Status(ctx context.Context, principalID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.StoreTimeout)
	defer cancel()

	count, ttl, err := l.store.Peek(ctx, l.key(principalID))
	if err != nil {
		return Status{}, l.unavailable("status", principalID, err)
	}
	return Status{
		Limit:     l.opts.MaxRequests,
		Remaining: max(0, l.opts.MaxRequests-count),
		ResetIn:   max(0, ttl),
	}, nil
}

// Remaining is max(0, limit - count); the full limit when no window is open.
func (l *Limiter) Remaining(ctx context.Context, principalID string) (int64, error) {
	st, err := l.Status(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return st.Remaining, nil
}

// TimeUntilReset is the counter's remaining TTL, zero when there is none.
func (l *Limiter) TimeUntilReset(ctx context.Context, principalID string) (time.Duration, error) {
	st, err := l.Status(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return st.ResetIn, nil
}

// Reset deletes the principal's counter. Administrative use only.
func (l *Limiter) Reset(ctx context.Context, principalID string) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.StoreTimeout)
	defer cancel()

	if err := l.store.Delete(ctx, l.key(principalID)); err != nil {
		return l.unavailable("reset", principalID, err)
	}
	l.logger.Info("rate limit reset", zap.String("principal", principalID))
	return nil
}
