package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"anchorid/internal/anchor"
	"anchorid/internal/cipher"
	"anchorid/internal/embedding"
	"anchorid/internal/extract"
	"anchorid/internal/identity/metrics"
	"anchorid/internal/pinning"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/audit"
	"anchorid/pkg/requestcontext"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Insert(ctx context.Context, record *Identity) error
	FindByDID(ctx context.Context, did id.DID) (*Identity, error)
}

// Service orchestrates enrollment.
type Service struct {
	store        Store
	embedder     extract.Embedder
	box          *cipher.Box
	anchors      *anchor.Service
	pinner       pinning.Pinner
	auditor      audit.Emitter
	logger       *slog.Logger
	metrics      *metrics.Metrics
	modelVersion string
}

// NewService constructs the enrollment service. The pinner may be nil when
// content-addressed storage is not configured.
func NewService(
	store Store,
	embedder extract.Embedder,
	box *cipher.Box,
	anchors *anchor.Service,
	pinner pinning.Pinner,
	auditor audit.Emitter,
	logger *slog.Logger,
	m *metrics.Metrics,
	modelVersion string,
) *Service {
	return &Service{
		store:        store,
		embedder:     embedder,
		box:          box,
		anchors:      anchors,
		pinner:       pinner,
		auditor:      auditor,
		logger:       logger,
		metrics:      m,
		modelVersion: modelVersion,
	}
}

type extracted struct {
	face    embedding.Vector
	voice   embedding.Vector
	doc     embedding.Vector
	docText string
}

// extractAll runs the three extractions in parallel. The first failure
// cancels the rest.
func (s *Service) extractAll(ctx context.Context, captures Captures) (*extracted, error) {
	var out extracted
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := s.embedder.Face(gctx, captures.FaceImage)
		if err != nil {
			s.metrics.IncrementExtractionFailure(string(id.ModalityFace))
			return fmt.Errorf("face: %w", err)
		}
		out.face = vec
		return nil
	})
	g.Go(func() error {
		vec, err := s.embedder.Voice(gctx, captures.VoiceSample)
		if err != nil {
			s.metrics.IncrementExtractionFailure(string(id.ModalityVoice))
			return fmt.Errorf("voice: %w", err)
		}
		out.voice = vec
		return nil
	})
	g.Go(func() error {
		vec, text, err := s.embedder.Document(gctx, captures.DocImage)
		if err != nil {
			s.metrics.IncrementExtractionFailure(string(id.ModalityDocument))
			return fmt.Errorf("document: %w", err)
		}
		out.doc = vec
		out.docText = text
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register enrolls a new subject from the three evidence captures.
func (s *Service) Register(ctx context.Context, captures Captures) (*RegisterResult, error) {
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	ext, err := s.extractAll(ctx, captures)
	if err != nil {
		s.metrics.IncrementRegistration("extraction_failed")
		if dErrors.HasCode(err, dErrors.CodeUnprocessable) || isNoFace(err) {
			return nil, dErrors.Wrap(dErrors.CodeUnprocessable, "could not extract biometrics from captures", err)
		}
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "embedding extraction unavailable", err)
	}

	userID := id.NewUserID()
	did := id.NewDID(userID)

	payload := anchor.RegistrationPayload{
		ModelVersion: s.modelVersion,
		Evidence: anchor.EvidenceHashes{
			Face:     anchor.EvidenceDigest(captures.FaceImage),
			Voice:    anchor.EvidenceDigest(captures.VoiceSample),
			Document: anchor.EvidenceDigest(captures.DocImage),
		},
		Timestamp: now.Unix(),
	}
	canonical, err := payload.Canonical()
	if err != nil {
		s.metrics.IncrementRegistration("payload_failed")
		return nil, dErrors.Wrap(dErrors.CodeInternal, "canonicalize registration payload", err)
	}
	digest, err := payload.Digest()
	if err != nil {
		s.metrics.IncrementRegistration("payload_failed")
		return nil, dErrors.Wrap(dErrors.CodeInternal, "digest registration payload", err)
	}

	cid := s.pin(ctx, did, canonical)
	anchorRes := s.anchors.Anchor(ctx, digest, did.String())

	record := &Identity{
		UserID:        userID,
		DID:           did,
		Evidence:      payload.Evidence,
		PayloadDigest: digest.Hex(),
		ModelVersion:  s.modelVersion,
		CID:           cid,
		Receipt:       anchorRes.Receipt,
		AnchorStatus:  string(anchorRes.Status),
		CreatedAt:     now,
	}
	if record.SealedFace, err = s.box.Seal(ext.face.Bytes()); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "seal face embedding", err)
	}
	if record.SealedVoice, err = s.box.Seal(ext.voice.Bytes()); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "seal voice embedding", err)
	}
	if record.SealedDocument, err = s.box.Seal(ext.doc.Bytes()); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "seal document embedding", err)
	}
	if record.SealedDocText, err = s.box.Seal([]byte(ext.docText)); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "seal document text", err)
	}

	if err := s.store.Insert(ctx, record); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementRegistration("conflict")
			s.emitAudit(ctx, audit.Event{
				UserID:    userID,
				DID:       did,
				Action:    string(audit.EventIdentityConflict),
				RequestID: requestID,
			})
			return nil, err
		}
		s.metrics.IncrementRegistration("store_failed")
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist identity", err)
	}

	s.metrics.IncrementRegistration("registered")
	s.logger.InfoContext(ctx, "identity registered",
		"did", did,
		"user_id", userID,
		"anchor_status", anchorRes.Status,
		"cid", cid,
		"request_id", requestID,
	)
	s.emitAudit(ctx, audit.Event{
		UserID:    userID,
		DID:       did,
		Action:    string(audit.EventIdentityRegistered),
		Receipt:   anchorRes.Receipt,
		RequestID: requestID,
	})

	return &RegisterResult{
		UserID:        userID,
		DID:           did,
		PayloadDigest: digest.Hex(),
		CID:           cid,
		Receipt:       anchorRes.Receipt,
		AnchorStatus:  string(anchorRes.Status),
	}, nil
}

// FindByDID resolves an enrollment record.
func (s *Service) FindByDID(ctx context.Context, did id.DID) (*Identity, error) {
	return s.store.FindByDID(ctx, did)
}

// pin pushes the canonical payload to content-addressed storage. Failure
// degrades the record (empty CID), it never fails the enrollment.
func (s *Service) pin(ctx context.Context, did id.DID, canonical []byte) string {
	if s.pinner == nil {
		return ""
	}
	cid, err := s.pinner.Pin(ctx, did.String()+".json", canonical)
	if err != nil {
		s.logger.WarnContext(ctx, "payload pinning failed", "did", did, "error", err)
		return ""
	}
	return cid
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func isNoFace(err error) bool {
	return errors.Is(err, extract.ErrNoFace)
}
