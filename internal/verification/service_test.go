package verification_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchorid/internal/anchor"
	"anchorid/internal/cipher"
	"anchorid/internal/embedding"
	"anchorid/internal/fusion"
	"anchorid/internal/identity"
	idstore "anchorid/internal/identity/store"
	"anchorid/internal/verification"
	"anchorid/internal/verification/store"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/audit"
	auditmem "anchorid/pkg/platform/audit/store/memory"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// unitVec returns a dim-length vector with a single 1 at the given index.
func unitVec(dim, index int) embedding.Vector {
	v := make(embedding.Vector, dim)
	v[index] = 1
	return v
}

type stubEmbedder struct {
	face  embedding.Vector
	voice embedding.Vector
	doc   embedding.Vector
	text  string
	err   error
}

func (s *stubEmbedder) Face(context.Context, []byte) ([]float32, error) {
	return s.face, s.err
}

func (s *stubEmbedder) Voice(context.Context, []byte) ([]float32, error) {
	return s.voice, s.err
}

func (s *stubEmbedder) Document(context.Context, []byte) ([]float32, string, error) {
	return s.doc, s.text, s.err
}

type stubLedger struct {
	receipt string
	err     error
	calls   int
}

func (s *stubLedger) Anchor(context.Context, anchor.Digest, string) (string, error) {
	s.calls++
	return s.receipt, s.err
}

func (s *stubLedger) Events(context.Context, string) ([]anchor.Event, error) {
	return nil, s.err
}

type fixture struct {
	svc        *verification.Service
	did        id.DID
	attempts   *store.InMemoryStore
	auditStore *auditmem.InMemoryStore
	ledger     *stubLedger
	box        *cipher.Box
	identities *idstore.InMemoryStore
}

// enrolledFixture seeds one identity whose stored face is unitVec(512, 0),
// voice unitVec(192, 0), and whose document's face subspace matches the
// stored face.
func enrolledFixture(t *testing.T, embedder *stubEmbedder) *fixture {
	t.Helper()
	box, err := cipher.New(testMasterKey)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	identities := idstore.NewInMemoryStore()
	attempts := store.NewInMemoryStore()
	auditStore := auditmem.NewInMemoryStore()
	ledger := &stubLedger{receipt: "rcpt-1"}

	userID := id.NewUserID()
	did := id.NewDID(userID)

	storedDoc := make(embedding.Vector, embedding.DocDim)
	storedDoc[0] = 1 // face subspace aligned with stored face

	seal := func(v embedding.Vector) []byte {
		sealed, err := box.Seal(v.Bytes())
		require.NoError(t, err)
		return sealed
	}
	sealedText, err := box.Seal([]byte("JANE DOE 1990-01-01"))
	require.NoError(t, err)

	require.NoError(t, identities.Insert(context.Background(), &identity.Identity{
		UserID:         userID,
		DID:            did,
		SealedFace:     seal(unitVec(embedding.FaceDim, 0)),
		SealedVoice:    seal(unitVec(embedding.VoiceDim, 0)),
		SealedDocument: seal(storedDoc),
		SealedDocText:  sealedText,
		CreatedAt:      time.Now().UTC(),
	}))

	engine := fusion.NewEngine(fusion.DefaultWeights, fusion.DefaultThreshold)
	anchors := anchor.NewService(ledger, nil, time.Second, logger, nil)
	auditor := audit.NewPublisher(auditStore, logger)

	svc := verification.NewService(identities, attempts, embedder, box, engine, anchors, auditor, logger, nil)
	return &fixture{
		svc:        svc,
		did:        did,
		attempts:   attempts,
		auditStore: auditStore,
		ledger:     ledger,
		box:        box,
		identities: identities,
	}
}

func matchingCaptures() verification.Captures {
	return verification.Captures{
		FaceImage:   []byte("face-jpeg"),
		VoiceSample: []byte("voice-wav"),
	}
}

func TestVerifyMatchPassesAndAnchors(t *testing.T) {
	embedder := &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 0),
		voice: unitVec(embedding.VoiceDim, 0),
	}
	f := enrolledFixture(t, embedder)

	result, err := f.svc.Verify(context.Background(), f.did, matchingCaptures())
	require.NoError(t, err)

	attempt := result.Attempt
	assert.True(t, attempt.Verified)
	assert.InDelta(t, 1.0, attempt.FaceScore, 1e-9)
	assert.InDelta(t, 1.0, attempt.VoiceScore, 1e-9)
	assert.Equal(t, fusion.CrossCheckStored, attempt.DocMode)
	assert.InDelta(t, 1.0, attempt.DocScore, 1e-9)
	assert.InDelta(t, 1.0, attempt.FinalScore, 1e-9)
	assert.Equal(t, id.ConfidenceVeryHigh, attempt.Confidence)
	assert.Equal(t, "rcpt-1", attempt.Receipt)
	assert.Equal(t, 1, f.ledger.calls)

	logged, err := f.attempts.ListByDID(context.Background(), f.did)
	require.NoError(t, err)
	require.Len(t, logged, 1)

	events, err := f.auditStore.ListByDID(context.Background(), f.did)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventVerificationPassed), events[0].Action)
}

func TestVerifyMismatchFailsButIsLogged(t *testing.T) {
	embedder := &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 1),
		voice: unitVec(embedding.VoiceDim, 1),
	}
	f := enrolledFixture(t, embedder)

	result, err := f.svc.Verify(context.Background(), f.did, matchingCaptures())
	require.NoError(t, err, "a failed match is an outcome, not an error")

	attempt := result.Attempt
	assert.False(t, attempt.Verified)
	assert.InDelta(t, 0.0, attempt.FaceScore, 1e-9)
	assert.InDelta(t, 0.0, attempt.VoiceScore, 1e-9)
	// Stored-document policy: text trusted at 1.0, face orthogonal.
	assert.InDelta(t, 0.5, attempt.DocScore, 1e-9)
	assert.InDelta(t, 0.125, attempt.FinalScore, 1e-9)
	assert.Equal(t, id.ConfidenceLow, attempt.Confidence)

	assert.Empty(t, attempt.Receipt, "failing outcomes are never anchored")
	assert.Equal(t, 0, f.ledger.calls)

	logged, err := f.attempts.ListByDID(context.Background(), f.did)
	require.NoError(t, err)
	require.Len(t, logged, 1, "failed attempts are logged too")
}

func TestVerifyWithLiveDocument(t *testing.T) {
	liveDoc := make(embedding.Vector, embedding.DocDim)
	liveDoc[0] = 1
	embedder := &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 0),
		voice: unitVec(embedding.VoiceDim, 0),
		doc:   liveDoc,
		text:  "JANE DOE 1990-01-01",
	}
	f := enrolledFixture(t, embedder)

	captures := matchingCaptures()
	captures.DocImage = []byte("doc-jpeg")
	result, err := f.svc.Verify(context.Background(), f.did, captures)
	require.NoError(t, err)

	attempt := result.Attempt
	assert.Equal(t, fusion.CrossCheckLive, attempt.DocMode)
	assert.InDelta(t, 1.0, attempt.DocTextScore, 1e-9, "identical text")
	assert.InDelta(t, 1.0, attempt.DocFaceScore, 1e-9)
	assert.True(t, attempt.Verified)
}

func TestVerifyUnknownDID(t *testing.T) {
	f := enrolledFixture(t, &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 0),
		voice: unitVec(embedding.VoiceDim, 0),
	})

	_, err := f.svc.Verify(context.Background(), id.DID("did:anchorid:user_nobody:0000000000000000"), matchingCaptures())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestVerifyExtractionOutage(t *testing.T) {
	f := enrolledFixture(t, &stubEmbedder{err: errors.New("sidecar timeout")})

	_, err := f.svc.Verify(context.Background(), f.did, matchingCaptures())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	logged, err := f.attempts.ListByDID(context.Background(), f.did)
	require.NoError(t, err)
	assert.Empty(t, logged, "no attempt is logged when extraction never produced scores")
}

func TestVerifyTamperedCiphertext(t *testing.T) {
	embedder := &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 0),
		voice: unitVec(embedding.VoiceDim, 0),
	}
	f := enrolledFixture(t, embedder)

	record, err := f.identities.FindByDID(context.Background(), f.did)
	require.NoError(t, err)
	record.SealedFace[len(record.SealedFace)-1] ^= 0xFF

	tampered := idstore.NewInMemoryStore()
	require.NoError(t, tampered.Insert(context.Background(), record))

	logger := slog.New(slog.DiscardHandler)
	engine := fusion.NewEngine(fusion.DefaultWeights, fusion.DefaultThreshold)
	anchors := anchor.NewService(nil, nil, time.Second, logger, nil)
	auditor := audit.NewPublisher(f.auditStore, logger)
	svc := verification.NewService(tampered, f.attempts, embedder, f.box, engine, anchors, auditor, logger, nil)

	_, err = svc.Verify(context.Background(), f.did, matchingCaptures())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	events, err := f.auditStore.ListByDID(context.Background(), f.did)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventCiphertextTamper), events[0].Action)
}

func TestVerifyAnchorFailureDegradesAttempt(t *testing.T) {
	embedder := &stubEmbedder{
		face:  unitVec(embedding.FaceDim, 0),
		voice: unitVec(embedding.VoiceDim, 0),
	}
	f := enrolledFixture(t, embedder)
	f.ledger.err = errors.New("gateway down")

	result, err := f.svc.Verify(context.Background(), f.did, matchingCaptures())
	require.NoError(t, err, "anchoring failure never fails the verification")

	attempt := result.Attempt
	assert.True(t, attempt.Verified)
	assert.Empty(t, attempt.Receipt)
	assert.Equal(t, string(anchor.StatusFailed), attempt.AnchorStatus)
}
