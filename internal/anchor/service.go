// Package anchor commits canonical event digests to an external tamper-
// evident ledger and reads them back for timeline reconciliation.
package anchor

import (
	"context"
	"log/slog"
	"time"

	"anchorid/internal/anchor/metrics"
	"anchorid/pkg/platform/circuit"
)

// Status reports which anchoring path executed. Callers assert on the value
// instead of inferring the path from errors or empty receipts.
type Status string

const (
	// StatusAnchored: the primary ledger accepted the digest.
	StatusAnchored Status = "anchored"
	// StatusDegraded: the primary failed and the fallback accepted the
	// digest.
	StatusDegraded Status = "degraded"
	// StatusSkipped: no ledger is configured; nothing was submitted.
	StatusSkipped Status = "skipped"
	// StatusFailed: every configured path failed. The local record still
	// stands; only the external corroboration is missing.
	StatusFailed Status = "failed"
)

// Result is the typed outcome of one anchoring attempt.
type Result struct {
	Status  Status
	Receipt string
}

// Anchored reports whether a receipt was obtained on any path.
func (r Result) Anchored() bool {
	return r.Status == StatusAnchored || r.Status == StatusDegraded
}

// Service selects the anchoring path once at construction: a primary ledger
// client and an optional fallback. Anchoring is a best-effort side channel;
// no failure here ever propagates as a request error.
type Service struct {
	primary  Ledger
	fallback Ledger
	timeout  time.Duration
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithBreaker overrides the primary ledger circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// NewService constructs the anchoring service. A nil primary disables
// anchoring entirely (StatusSkipped).
func NewService(primary, fallback Ledger, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Service{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		breaker:  circuit.New("primary-ledger"),
		logger:   logger,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Anchor submits a digest with a bounded wait for confirmation. A circuit
// breaker on the primary routes straight to the fallback after repeated
// primary failures; failed fallbacks still probe the primary so the breaker
// can close again.
func (s *Service) Anchor(ctx context.Context, digest Digest, subject string) Result {
	if s.primary == nil {
		s.metrics.IncrementOutcome(string(StatusSkipped))
		return Result{Status: StatusSkipped}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.breaker.IsOpen() && s.fallback != nil {
		if receipt, err := s.anchorFallback(ctx, digest, subject); err == nil {
			s.metrics.IncrementOutcome(string(StatusDegraded))
			return Result{Status: StatusDegraded, Receipt: receipt}
		}
		if receipt, err := s.anchorPrimary(ctx, digest, subject); err == nil {
			s.metrics.IncrementOutcome(string(StatusAnchored))
			return Result{Status: StatusAnchored, Receipt: receipt}
		}
		s.metrics.IncrementOutcome(string(StatusFailed))
		return Result{Status: StatusFailed}
	}

	receipt, err := s.anchorPrimary(ctx, digest, subject)
	if err == nil {
		s.metrics.IncrementOutcome(string(StatusAnchored))
		return Result{Status: StatusAnchored, Receipt: receipt}
	}

	if s.fallback == nil {
		s.metrics.IncrementOutcome(string(StatusFailed))
		return Result{Status: StatusFailed}
	}

	receipt, fbErr := s.anchorFallback(ctx, digest, subject)
	if fbErr != nil {
		s.metrics.IncrementOutcome(string(StatusFailed))
		return Result{Status: StatusFailed}
	}

	s.logger.InfoContext(ctx, "anchored via fallback ledger", "subject", subject)
	s.metrics.IncrementOutcome(string(StatusDegraded))
	return Result{Status: StatusDegraded, Receipt: receipt}
}

// anchorPrimary submits to the primary and feeds the breaker.
func (s *Service) anchorPrimary(ctx context.Context, digest Digest, subject string) (string, error) {
	start := time.Now()
	receipt, err := s.primary.Anchor(ctx, digest, subject)
	s.metrics.ObserveSubmitLatency("primary", time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "primary ledger anchoring failed",
			"subject", subject,
			"digest", digest.Hex(),
			"error", err,
		)
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.ErrorContext(ctx, "primary ledger circuit opened, routing to fallback")
		}
		return "", err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "primary ledger circuit closed")
	}
	return receipt, nil
}

func (s *Service) anchorFallback(ctx context.Context, digest Digest, subject string) (string, error) {
	start := time.Now()
	receipt, err := s.fallback.Anchor(ctx, digest, subject)
	s.metrics.ObserveSubmitLatency("fallback", time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "fallback ledger anchoring failed",
			"subject", subject,
			"digest", digest.Hex(),
			"error", err,
		)
		return "", err
	}
	return receipt, nil
}

// Events lists ledger events for a subject, preferring the primary path.
// With no ledger configured it returns an empty list: missing corroboration
// is not an error.
func (s *Service) Events(ctx context.Context, subject string) ([]Event, error) {
	if s.primary == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := s.primary.Events(ctx, subject)
	if err == nil {
		return events, nil
	}
	if s.fallback == nil {
		return nil, err
	}

	s.logger.WarnContext(ctx, "primary ledger event fetch failed, trying fallback", "error", err)
	return s.fallback.Events(ctx, subject)
}
