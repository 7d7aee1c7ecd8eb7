package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "anchorid/internal/jwt_token"
	"anchorid/internal/timeline"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
)

const testDID = "did:anchorid:user_abcdef123456:0011223344556677"

type stubService struct {
	entries []timeline.Entry
	stats   *timeline.Stats
	err     error
}

func (s *stubService) Timeline(context.Context, id.DID) ([]timeline.Entry, error) {
	return s.entries, s.err
}

func (s *stubService) Stats(context.Context, id.DID) (*timeline.Stats, error) {
	return s.stats, s.err
}

var jwtService = jwttoken.NewJWTService("test-signing-key", "test-issuer", "test-audience")

func newTestRouter(svc Service) chi.Router {
	h := New(svc, slog.New(slog.DiscardHandler), jwttoken.NewJWTServiceAdapter(jwtService))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func authedRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	token, err := jwtService.GenerateAccessToken("test-client", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleTimeline(t *testing.T) {
	pos := uint64(7)
	svc := &stubService{entries: []timeline.Entry{
		{Type: timeline.EntryRegistration, Timestamp: time.Now().UTC(), Receipt: "rcpt-reg", LedgerPosition: &pos},
		{Type: timeline.EntryVerification, Timestamp: time.Now().UTC(), Verified: true, FinalScore: 0.91, Confidence: id.ConfidenceVeryHigh},
	}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, "/user/"+testDID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	entries, ok := resp["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	assert.Equal(t, "registration", first["type"])
	assert.Equal(t, float64(7), first["ledger_position"])
	_, hasVerified := first["verified"]
	assert.False(t, hasVerified, "registration entries carry no verification fields")

	second := entries[1].(map[string]any)
	assert.Equal(t, "verification", second["type"])
	assert.Equal(t, true, second["verified"])
	assert.Equal(t, "VERY_HIGH", second["confidence"])
}

func TestHandleStats(t *testing.T) {
	svc := &stubService{stats: &timeline.Stats{Total: 4, Passed: 3, Failed: 1, AverageScore: 0.81, SuccessRate: 0.75}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, "/user/"+testDID+"/stats"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(4), resp["total_verifications"])
	assert.Equal(t, 0.75, resp["success_rate"])
}

func TestHandleTimelineRequiresAuth(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/"+testDID, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleTimelineRejectsBadToken(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/user/"+testDID, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleTimelineUnknownDID(t *testing.T) {
	router := newTestRouter(&stubService{err: dErrors.New(dErrors.CodeNotFound, "identity not found")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, "/user/"+testDID))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
