package timeline

import (
	"context"
	"log/slog"
	"sort"

	"anchorid/internal/anchor"
	"anchorid/internal/identity"
	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
)

// IdentityFinder resolves enrolled records.
type IdentityFinder interface {
	FindByDID(ctx context.Context, did id.DID) (*identity.Identity, error)
}

// AttemptLister reads the local verification log.
type AttemptLister interface {
	ListByDID(ctx context.Context, did id.DID) ([]verification.Attempt, error)
}

// LedgerReader lists ledger events for a subject.
type LedgerReader interface {
	Events(ctx context.Context, subject string) ([]anchor.Event, error)
}

// Service reconciles local history with ledger corroboration.
type Service struct {
	identities IdentityFinder
	attempts   AttemptLister
	ledger     LedgerReader
	cache      *EventCache
	logger     *slog.Logger
}

// NewService constructs the timeline service.
func NewService(
	identities IdentityFinder,
	attempts AttemptLister,
	ledger LedgerReader,
	cache *EventCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities: identities,
		attempts:   attempts,
		ledger:     ledger,
		cache:      cache,
		logger:     logger,
	}
}

// Timeline reconstructs the full event history for a DID: a synthetic
// registration entry from the enrollment record, one entry per local
// attempt, and ledger position metadata attached where receipts match.
func (s *Service) Timeline(ctx context.Context, did id.DID) ([]Entry, error) {
	record, err := s.identities.FindByDID(ctx, did)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByDID(ctx, did)
	if err != nil {
		return nil, err
	}

	positions := s.ledgerPositions(ctx, did)

	entries := make([]Entry, 0, len(attempts)+1)
	registration := Entry{
		Type:      EntryRegistration,
		Timestamp: record.CreatedAt,
		Receipt:   record.Receipt,
	}
	if pos, ok := positions[record.Receipt]; ok && record.Receipt != "" {
		registration.LedgerPosition = &pos
	}
	entries = append(entries, registration)

	for _, attempt := range attempts {
		entry := Entry{
			Type:       EntryVerification,
			Timestamp:  attempt.CreatedAt,
			Verified:   attempt.Verified,
			FinalScore: attempt.FinalScore,
			Confidence: attempt.Confidence,
			Receipt:    attempt.Receipt,
		}
		if pos, ok := positions[attempt.Receipt]; ok && attempt.Receipt != "" {
			entry.LedgerPosition = &pos
		}
		entries = append(entries, entry)
	}

	// Stable: entries sharing a timestamp keep insertion order, which puts
	// registration before same-instant verifications.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// ledgerPositions fetches ledger events (through the cache) and indexes
// positions by receipt. Ledger unavailability yields an empty map: missing
// corroboration is not an error.
func (s *Service) ledgerPositions(ctx context.Context, did id.DID) map[string]uint64 {
	subject := did.String()

	events, hit := s.cache.Get(ctx, subject)
	if !hit {
		var err error
		events, err = s.ledger.Events(ctx, subject)
		if err != nil {
			s.logger.WarnContext(ctx, "ledger events unavailable, timeline is local-only",
				"did", did,
				"error", err,
			)
			return nil
		}
		s.cache.Put(ctx, subject, events)
	}

	positions := make(map[string]uint64, len(events))
	for _, event := range events {
		positions[event.Receipt] = event.Position
	}
	return positions
}

// Stats aggregates the local verification history for a DID.
func (s *Service) Stats(ctx context.Context, did id.DID) (*Stats, error) {
	if _, err := s.identities.FindByDID(ctx, did); err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByDID(ctx, did)
	if err != nil {
		return nil, err
	}

	stats := Stats{Total: len(attempts)}
	var sum float64
	for _, attempt := range attempts {
		sum += attempt.FinalScore
		if attempt.Verified {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = sum / float64(stats.Total)
		stats.SuccessRate = float64(stats.Passed) / float64(stats.Total)
	}
	return &stats, nil
}
