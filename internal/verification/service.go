package verification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"anchorid/internal/anchor"
	"anchorid/internal/cipher"
	"anchorid/internal/embedding"
	"anchorid/internal/extract"
	"anchorid/internal/fusion"
	"anchorid/internal/identity"
	"anchorid/internal/verification/metrics"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/audit"
	"anchorid/pkg/requestcontext"
)

// IdentityFinder resolves enrolled records.
type IdentityFinder interface {
	FindByDID(ctx context.Context, did id.DID) (*identity.Identity, error)
}

// AttemptStore is the append-only attempt log the service writes to.
type AttemptStore interface {
	Append(ctx context.Context, attempt *Attempt) error
	ListByDID(ctx context.Context, did id.DID) ([]Attempt, error)
}

// Service orchestrates verification.
type Service struct {
	identities IdentityFinder
	attempts   AttemptStore
	embedder   extract.Embedder
	box        *cipher.Box
	engine     *fusion.Engine
	anchors    *anchor.Service
	auditor    audit.Emitter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewService constructs the verification service.
func NewService(
	identities IdentityFinder,
	attempts AttemptStore,
	embedder extract.Embedder,
	box *cipher.Box,
	engine *fusion.Engine,
	anchors *anchor.Service,
	auditor audit.Emitter,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		identities: identities,
		attempts:   attempts,
		embedder:   embedder,
		box:        box,
		engine:     engine,
		anchors:    anchors,
		auditor:    auditor,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("anchorid/verification"),
	}
}

type liveEvidence struct {
	face  embedding.Vector
	voice embedding.Vector
	doc   *fusion.LiveDocument
}

// extractLive runs the extractions for the supplied captures in parallel.
// The document extraction only runs when a live document was uploaded.
func (s *Service) extractLive(ctx context.Context, captures Captures) (*liveEvidence, error) {
	var out liveEvidence
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := s.embedder.Face(gctx, captures.FaceImage)
		if err != nil {
			return err
		}
		out.face = vec
		return nil
	})
	g.Go(func() error {
		vec, err := s.embedder.Voice(gctx, captures.VoiceSample)
		if err != nil {
			return err
		}
		out.voice = vec
		return nil
	})
	if len(captures.DocImage) > 0 {
		g.Go(func() error {
			vec, text, err := s.embedder.Document(gctx, captures.DocImage)
			if err != nil {
				return err
			}
			out.doc = &fusion.LiveDocument{Embedding: vec, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, extract.ErrNoFace) {
			return nil, dErrors.Wrap(dErrors.CodeUnprocessable, "could not extract biometrics from captures", err)
		}
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "embedding extraction unavailable", err)
	}
	return &out, nil
}

type storedEvidence struct {
	face    embedding.Vector
	voice   embedding.Vector
	doc     embedding.Vector
	docText string
}

// openStored decrypts the enrolled record. Any failure here means the
// ciphertext was tampered with or the key is wrong; both are loud.
func (s *Service) openStored(ctx context.Context, record *identity.Identity) (*storedEvidence, error) {
	open := func(sealed []byte) (embedding.Vector, error) {
		plain, err := s.box.Open(sealed)
		if err != nil {
			return nil, err
		}
		return embedding.FromBytes(plain)
	}

	var (
		out storedEvidence
		err error
	)
	if out.face, err = open(record.SealedFace); err == nil {
		if out.voice, err = open(record.SealedVoice); err == nil {
			out.doc, err = open(record.SealedDocument)
		}
	}
	if err == nil {
		var text []byte
		if text, err = s.box.Open(record.SealedDocText); err == nil {
			out.docText = string(text)
		}
	}
	if err != nil {
		s.emitAudit(ctx, audit.Event{
			UserID: record.UserID,
			DID:    record.DID,
			Action: string(audit.EventCiphertextTamper),
			Reason: err.Error(),
		})
		return nil, dErrors.Wrap(dErrors.CodeInternal, "stored embeddings unreadable", err)
	}
	return &out, nil
}

// Verify matches fresh captures against the enrolled identity. The attempt
// is logged whether it passes or fails; only passing outcomes are anchored.
func (s *Service) Verify(ctx context.Context, did id.DID, captures Captures) (*Result, error) {
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	ctx, span := s.tracer.Start(ctx, "verification.Verify",
		trace.WithAttributes(attribute.String("did", did.String())))
	defer span.End()

	record, err := s.identities.FindByDID(ctx, did)
	if err != nil {
		return nil, err
	}

	live, err := s.extractLive(ctx, captures)
	if err != nil {
		s.metrics.IncrementAttempt("extraction_failed", "")
		return nil, err
	}

	stored, err := s.openStored(ctx, record)
	if err != nil {
		s.metrics.IncrementAttempt("decrypt_failed", "")
		return nil, err
	}

	if len(live.face) != len(stored.face) {
		s.logger.WarnContext(ctx, "live and stored face dimensions differ, cosine will truncate",
			"did", did,
			"live_dim", len(live.face),
			"stored_dim", len(stored.face),
		)
	}

	outcome := s.score(ctx, live, stored)
	span.SetAttributes(
		attribute.Float64("final_score", outcome.FinalScore),
		attribute.Bool("verified", outcome.Verified),
		attribute.String("doc_mode", string(outcome.Scores.Document.Mode)),
	)

	attempt := Attempt{
		ID:           uuid.NewString(),
		DID:          did,
		FaceScore:    outcome.Scores.Face,
		VoiceScore:   outcome.Scores.Voice,
		DocScore:     outcome.Scores.Document.Score,
		DocTextScore: outcome.Scores.Document.TextScore,
		DocFaceScore: outcome.Scores.Document.FaceScore,
		DocMode:      outcome.Scores.Document.Mode,
		FinalScore:   outcome.FinalScore,
		Verified:     outcome.Verified,
		Confidence:   outcome.Confidence,
		CreatedAt:    now,
	}

	if outcome.Verified {
		attempt.Receipt, attempt.AnchorStatus = s.anchorOutcome(ctx, did, outcome, now.Unix())
	}

	if err := s.attempts.Append(ctx, &attempt); err != nil {
		s.metrics.IncrementAttempt("log_failed", string(attempt.DocMode))
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist verification attempt", err)
	}

	outcomeLabel := "failed"
	auditAction := audit.EventVerificationFailed
	if outcome.Verified {
		outcomeLabel = "passed"
		auditAction = audit.EventVerificationPassed
	}
	s.metrics.IncrementAttempt(outcomeLabel, string(attempt.DocMode))
	s.metrics.ObserveFinalScore(outcome.FinalScore)

	s.logger.InfoContext(ctx, "verification attempt",
		"did", did,
		"verified", outcome.Verified,
		"final_score", outcome.FinalScore,
		"confidence", outcome.Confidence,
		"doc_mode", attempt.DocMode,
		"request_id", requestID,
	)
	s.emitAudit(ctx, audit.Event{
		UserID:    record.UserID,
		DID:       did,
		Action:    string(auditAction),
		Decision:  outcomeLabel,
		Receipt:   attempt.Receipt,
		RequestID: requestID,
	})

	return &Result{Attempt: attempt}, nil
}

// score runs the similarity primitives and the fusion engine.
func (s *Service) score(ctx context.Context, live *liveEvidence, stored *storedEvidence) fusion.Outcome {
	_, span := s.tracer.Start(ctx, "verification.score")
	defer span.End()

	var docCheck fusion.DocumentCheck
	if live.doc != nil {
		docCheck = fusion.CrossCheckLiveDocument(*live.doc, stored.docText, live.face)
	} else {
		docCheck = fusion.CrossCheckStoredDocument(stored.doc, live.face)
	}

	return s.engine.Fuse(fusion.Scores{
		Face:     fusion.CosineSimilarity(live.face, stored.face),
		Voice:    fusion.CosineSimilarity(live.voice, stored.voice),
		Document: docCheck,
	})
}

// anchorOutcome commits the passing outcome's canonical digest. Anchoring
// failures degrade the attempt record; they never fail the request.
func (s *Service) anchorOutcome(ctx context.Context, did id.DID, outcome fusion.Outcome, ts int64) (receipt, status string) {
	ctx, span := s.tracer.Start(ctx, "verification.anchor")
	defer span.End()

	payload := anchor.VerificationPayload{
		DID:       did,
		Face:      outcome.Scores.Face,
		Voice:     outcome.Scores.Voice,
		Document:  outcome.Scores.Document.Score,
		Final:     outcome.FinalScore,
		Verified:  outcome.Verified,
		Timestamp: ts,
	}
	digest, err := payload.Digest()
	if err != nil {
		s.logger.ErrorContext(ctx, "verification payload digest failed", "did", did, "error", err)
		return "", string(anchor.StatusFailed)
	}

	res := s.anchors.Anchor(ctx, digest, did.String())
	if res.Status == anchor.StatusDegraded || res.Status == anchor.StatusFailed {
		s.emitAudit(ctx, audit.Event{
			DID:    did,
			Action: string(anchorAuditAction(res.Status)),
			Reason: "primary ledger unavailable",
		})
	}
	return res.Receipt, string(res.Status)
}

func anchorAuditAction(status anchor.Status) audit.AuditEvent {
	if status == anchor.StatusDegraded {
		return audit.EventAnchorDegraded
	}
	return audit.EventAnchorFailed
}

// History lists the local attempt log for a DID.
func (s *Service) History(ctx context.Context, did id.DID) ([]Attempt, error) {
	return s.attempts.ListByDID(ctx, did)
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
