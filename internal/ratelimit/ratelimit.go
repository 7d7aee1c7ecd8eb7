// Package ratelimit throttles the biometric endpoints per client IP using
// a sliding window, so a single caller cannot brute-force verification or
// flood enrollment with capture uploads.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"anchorid/internal/ratelimit/metrics"
)

// Class identifies a group of endpoints sharing a limit.
type Class string

const (
	ClassEnroll Class = "enroll"
	ClassVerify Class = "verify"
)

// Limit is the allowance for one class within a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits reflect that enrollment is a once-per-user operation while
// verification is the hot path.
var DefaultLimits = map[Class]Limit{
	ClassEnroll: {Requests: 10, Window: time.Minute},
	ClassVerify: {Requests: 30, Window: time.Minute},
}

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, floored at 1.
func (r *Result) RetryAfter() int {
	secs := int(time.Until(r.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Store counts requests per key within a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limiter checks per-IP limits against a Store.
type Limiter struct {
	store   Store
	limits  map[Class]Limit
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

// WithLimits overrides the default per-class limits.
func WithLimits(limits map[Class]Limit) Option {
	return func(l *Limiter) {
		l.limits = limits
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func NewLimiter(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limits: DefaultLimits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckIP checks whether the given client IP may make another request of the
// given class. Unknown classes are allowed through.
func (l *Limiter) CheckIP(ctx context.Context, ip string, class Class) (*Result, error) {
	limit, ok := l.limits[class]
	if !ok {
		return &Result{Allowed: true, Remaining: 1, Limit: 0, ResetAt: time.Now()}, nil
	}

	result, err := l.store.Allow(ctx, "ratelimit:"+string(class)+":ip:"+ip, limit.Requests, limit.Window)
	if err != nil {
		return nil, err
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "limited"
		l.logger.WarnContext(ctx, "rate limit exceeded",
			"class", string(class),
			"ip", ip,
			"limit", result.Limit,
		)
	}
	l.metrics.ObserveDecision(string(class), outcome)

	return result, nil
}
