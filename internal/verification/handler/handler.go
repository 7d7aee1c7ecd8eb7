// Package handler exposes verification over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorid/internal/platform/middleware"
	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/httputil"
)

// Service defines the interface for verification operations.
type Service interface {
	Verify(ctx context.Context, did id.DID, captures verification.Captures) (*verification.Result, error)
}

// Handler handles verification endpoints.
type Handler struct {
	logger         *slog.Logger
	verifications  Service
	maxUploadBytes int64
}

// New creates a new verification Handler.
func New(verifications Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		verifications:  verifications,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

type scoresResponse struct {
	Face     float64 `json:"face"`
	Voice    float64 `json:"voice"`
	Document float64 `json:"document"`
	DocText  float64 `json:"doc_text"`
	DocFace  float64 `json:"doc_face"`
	Final    float64 `json:"final"`
}

type verifyResponse struct {
	DID          string         `json:"did"`
	Verified     bool           `json:"verified"`
	Confidence   string         `json:"confidence"`
	Scores       scoresResponse `json:"scores"`
	DocMode      string         `json:"doc_mode"`
	Receipt      string         `json:"receipt,omitempty"`
	AnchorStatus string         `json:"anchor_status,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

// handleVerify accepts a multipart form with a did field and face, voice,
// and optional document parts.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with did, face, and voice"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	did, err := id.ParseDID(r.FormValue("did"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	captures, err := readCaptures(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid verify captures",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifications.Verify(ctx, did, *captures)
	if err != nil {
		if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"did", did,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "verification failed"))
		return
	}

	attempt := result.Attempt
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{
		DID:        attempt.DID.String(),
		Verified:   attempt.Verified,
		Confidence: attempt.Confidence.String(),
		Scores: scoresResponse{
			Face:     attempt.FaceScore,
			Voice:    attempt.VoiceScore,
			Document: attempt.DocScore,
			DocText:  attempt.DocTextScore,
			DocFace:  attempt.DocFaceScore,
			Final:    attempt.FinalScore,
		},
		DocMode:      string(attempt.DocMode),
		Receipt:      attempt.Receipt,
		AnchorStatus: attempt.AnchorStatus,
		Timestamp:    attempt.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// readCaptures pulls the evidence parts out of the parsed form. The
// document part is optional; its absence selects the stored-document
// cross-check policy downstream.
func readCaptures(r *http.Request) (*verification.Captures, error) {
	face, err := readPart(r, "face", true)
	if err != nil {
		return nil, err
	}
	voice, err := readPart(r, "voice", true)
	if err != nil {
		return nil, err
	}
	document, err := readPart(r, "document", false)
	if err != nil {
		return nil, err
	}
	return &verification.Captures{FaceImage: face, VoiceSample: voice, DocImage: document}, nil
}

func readPart(r *http.Request, name string, required bool) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		if !required {
			return nil, nil
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing form part: "+name)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "read form part: "+name, err)
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "empty form part: "+name)
	}
	return data, nil
}
