// Package handler exposes the reconciled history surface. All routes are
// bearer-token protected: the history of an identity is not public.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"anchorid/internal/platform/middleware"
	"anchorid/internal/timeline"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/httputil"
)

// Service defines the interface for history operations.
type Service interface {
	Timeline(ctx context.Context, did id.DID) ([]timeline.Entry, error)
	Stats(ctx context.Context, did id.DID) (*timeline.Stats, error)
}

// Handler handles history endpoints.
type Handler struct {
	logger       *slog.Logger
	timelines    Service
	jwtValidator middleware.JWTValidator
}

// New creates a new timeline Handler.
func New(timelines Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		timelines:    timelines,
		jwtValidator: jwtValidator,
	}
}

// Register registers the history routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	userRouter := chi.NewRouter()
	userRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	userRouter.Get("/{did}", h.handleTimeline)
	userRouter.Get("/{did}/stats", h.handleStats)

	r.Mount("/user", userRouter)
}

type entryResponse struct {
	Type           string   `json:"type"`
	Timestamp      string   `json:"timestamp"`
	Verified       *bool    `json:"verified,omitempty"`
	FinalScore     *float64 `json:"final_score,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Receipt        string   `json:"receipt,omitempty"`
	LedgerPosition *uint64  `json:"ledger_position,omitempty"`
}

type timelineResponse struct {
	DID     string          `json:"did"`
	Entries []entryResponse `json:"entries"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	did, err := id.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.timelines.Timeline(ctx, did)
	if err != nil {
		h.writeServiceError(ctx, w, did, err)
		return
	}

	resp := timelineResponse{DID: did.String(), Entries: make([]entryResponse, 0, len(entries))}
	for _, entry := range entries {
		er := entryResponse{
			Type:           string(entry.Type),
			Timestamp:      entry.Timestamp.UTC().Format(time.RFC3339Nano),
			Receipt:        entry.Receipt,
			LedgerPosition: entry.LedgerPosition,
		}
		if entry.Type == timeline.EntryVerification {
			verified := entry.Verified
			score := entry.FinalScore
			er.Verified = &verified
			er.FinalScore = &score
			er.Confidence = entry.Confidence.String()
		}
		resp.Entries = append(resp.Entries, er)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	DID          string  `json:"did"`
	Total        int     `json:"total_verifications"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	AverageScore float64 `json:"average_score"`
	SuccessRate  float64 `json:"success_rate"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	did, err := id.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.timelines.Stats(ctx, did)
	if err != nil {
		h.writeServiceError(ctx, w, did, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statsResponse{
		DID:          did.String(),
		Total:        stats.Total,
		Passed:       stats.Passed,
		Failed:       stats.Failed,
		AverageScore: stats.AverageScore,
		SuccessRate:  stats.SuccessRate,
	})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, did id.DID, err error) {
	if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, "history read failed",
		"did", did,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "history read failed"))
}
