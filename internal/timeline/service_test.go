package timeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchorid/internal/anchor"
	"anchorid/internal/identity"
	idstore "anchorid/internal/identity/store"
	"anchorid/internal/timeline"
	"anchorid/internal/verification"
	vstore "anchorid/internal/verification/store"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
)

type stubLedger struct {
	events []anchor.Event
	err    error
	calls  int
}

func (s *stubLedger) Events(context.Context, string) ([]anchor.Event, error) {
	s.calls++
	return s.events, s.err
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seededFixture(t *testing.T, ledger *stubLedger) (*timeline.Service, id.DID, *vstore.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	identities := idstore.NewInMemoryStore()
	attempts := vstore.NewInMemoryStore()

	userID := id.NewUserID()
	did := id.NewDID(userID)
	require.NoError(t, identities.Insert(context.Background(), &identity.Identity{
		UserID:    userID,
		DID:       did,
		Receipt:   "rcpt-reg",
		CreatedAt: baseTime,
	}))

	svc := timeline.NewService(identities, attempts, ledger, timeline.NewEventCache(nil, logger), logger)
	return svc, did, attempts
}

func appendAttempt(t *testing.T, attempts *vstore.InMemoryStore, did id.DID, at time.Time, verified bool, score float64, receipt string) {
	t.Helper()
	require.NoError(t, attempts.Append(context.Background(), &verification.Attempt{
		ID:         receipt + "-id",
		DID:        did,
		Verified:   verified,
		FinalScore: score,
		Confidence: id.ConfidenceForScore(score),
		Receipt:    receipt,
		CreatedAt:  at,
	}))
}

func TestTimelineRegistrationPlusTwoAttempts(t *testing.T) {
	ledger := &stubLedger{events: []anchor.Event{
		{Receipt: "rcpt-reg", Position: 10},
		{Receipt: "rcpt-v1", Position: 11},
	}}
	svc, did, attempts := seededFixture(t, ledger)

	appendAttempt(t, attempts, did, baseTime.Add(time.Hour), true, 0.92, "rcpt-v1")
	appendAttempt(t, attempts, did, baseTime.Add(2*time.Hour), false, 0.41, "")

	entries, err := svc.Timeline(context.Background(), did)
	require.NoError(t, err)
	require.Len(t, entries, 3, "one registration plus two attempts")

	assert.Equal(t, timeline.EntryRegistration, entries[0].Type)
	require.NotNil(t, entries[0].LedgerPosition)
	assert.Equal(t, uint64(10), *entries[0].LedgerPosition)

	assert.Equal(t, timeline.EntryVerification, entries[1].Type)
	assert.True(t, entries[1].Verified)
	require.NotNil(t, entries[1].LedgerPosition)
	assert.Equal(t, uint64(11), *entries[1].LedgerPosition)

	assert.Equal(t, timeline.EntryVerification, entries[2].Type)
	assert.False(t, entries[2].Verified)
	assert.Nil(t, entries[2].LedgerPosition, "unanchored attempt has no ledger corroboration")

	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp), "entries sorted ascending")
	}
}

func TestTimelineLedgerOutageIsLocalOnly(t *testing.T) {
	svc, did, attempts := seededFixture(t, &stubLedger{err: errors.New("gateway down")})
	appendAttempt(t, attempts, did, baseTime.Add(time.Hour), true, 0.92, "rcpt-v1")

	entries, err := svc.Timeline(context.Background(), did)
	require.NoError(t, err, "missing ledger corroboration is not an error")
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Nil(t, entry.LedgerPosition)
	}
}

func TestTimelineUnknownDID(t *testing.T) {
	svc, _, _ := seededFixture(t, &stubLedger{})

	_, err := svc.Timeline(context.Background(), id.DID("did:anchorid:user_nobody:0000000000000000"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStats(t *testing.T) {
	svc, did, attempts := seededFixture(t, &stubLedger{})

	appendAttempt(t, attempts, did, baseTime.Add(time.Hour), true, 0.9, "r1")
	appendAttempt(t, attempts, did, baseTime.Add(2*time.Hour), true, 0.8, "r2")
	appendAttempt(t, attempts, did, baseTime.Add(3*time.Hour), false, 0.4, "")

	stats, err := svc.Stats(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 0.7, stats.AverageScore, 1e-9)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
}

func TestStatsEmptyHistory(t *testing.T) {
	svc, did, _ := seededFixture(t, &stubLedger{})

	stats, err := svc.Stats(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.AverageScore)
	assert.Zero(t, stats.SuccessRate)
}
