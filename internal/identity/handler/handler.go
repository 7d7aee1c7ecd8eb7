// Package handler exposes enrollment over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorid/internal/identity"
	"anchorid/internal/platform/middleware"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/httputil"
)

// Service defines the interface for enrollment operations.
type Service interface {
	Register(ctx context.Context, captures identity.Captures) (*identity.RegisterResult, error)
}

// Handler handles enrollment endpoints.
type Handler struct {
	logger         *slog.Logger
	identities     Service
	maxUploadBytes int64
}

// New creates a new identity Handler.
func New(identities Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		identities:     identities,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the enrollment routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.handleRegister)
}

type registerResponse struct {
	UserID        string `json:"user_id"`
	DID           string `json:"did"`
	PayloadDigest string `json:"payload_digest"`
	CID           string `json:"cid,omitempty"`
	Receipt       string `json:"receipt,omitempty"`
	AnchorStatus  string `json:"anchor_status"`
}

// handleRegister accepts a multipart form with three parts: face (image),
// voice (audio), document (image).
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with face, voice, and document parts"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	captures, err := readCaptures(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid register captures",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.identities.Register(ctx, *captures)
	if err != nil {
		if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "enrollment failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "enrollment failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		UserID:        result.UserID.String(),
		DID:           result.DID.String(),
		PayloadDigest: result.PayloadDigest,
		CID:           result.CID,
		Receipt:       result.Receipt,
		AnchorStatus:  result.AnchorStatus,
	})
}

// readCaptures pulls the three evidence parts out of the parsed form and
// rejects empty or non-media content.
func readCaptures(r *http.Request) (*identity.Captures, error) {
	face, err := readPart(r, "face", "image/")
	if err != nil {
		return nil, err
	}
	voice, err := readPart(r, "voice", "audio/")
	if err != nil {
		return nil, err
	}
	document, err := readPart(r, "document", "image/")
	if err != nil {
		return nil, err
	}
	return &identity.Captures{FaceImage: face, VoiceSample: voice, DocImage: document}, nil
}

func readPart(r *http.Request, name, wantPrefix string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
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
	if !mediaMatches(data, wantPrefix) {
		return nil, dErrors.New(dErrors.CodeBadRequest, name+" part must be "+wantPrefix+"*")
	}
	return data, nil
}

// mediaMatches sniffs the content type from the payload itself; the
// client-declared part header is not trusted.
func mediaMatches(data []byte, wantPrefix string) bool {
	detected := http.DetectContentType(data)
	if len(detected) >= len(wantPrefix) && detected[:len(wantPrefix)] == wantPrefix {
		return true
	}
	// WAV and some codecs sniff as application/octet-stream; accept them for
	// audio rather than rejecting valid captures.
	return wantPrefix == "audio/" && detected == "application/octet-stream"
}
