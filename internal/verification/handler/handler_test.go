package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchorid/internal/fusion"
	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
)

const testDID = "did:anchorid:user_abcdef123456:0011223344556677"

type stubService struct {
	did      id.DID
	captures verification.Captures
	result   *verification.Result
	err      error
}

func (s *stubService) Verify(_ context.Context, did id.DID, captures verification.Captures) (*verification.Result, error) {
	s.did = did
	s.captures = captures
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func verifyRequest(t *testing.T, did string, withDocument bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if did != "" {
		require.NoError(t, mw.WriteField("did", did))
	}
	for _, name := range []string{"face", "voice"} {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write([]byte(name + "-data"))
		require.NoError(t, err)
	}
	if withDocument {
		fw, err := mw.CreateFormFile("document", "document.bin")
		require.NoError(t, err)
		_, err = fw.Write([]byte("document-data"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/verify", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestRouter(svc Service) chi.Router {
	h := New(svc, slog.New(slog.DiscardHandler), 10<<20)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestHandleVerify(t *testing.T) {
	svc := &stubService{result: &verification.Result{Attempt: verification.Attempt{
		DID:        testDID,
		Verified:   true,
		Confidence: id.ConfidenceVeryHigh,
		FaceScore:  0.95,
		VoiceScore: 0.91,
		DocScore:   0.88,
		FinalScore: 0.9075,
		DocMode:    fusion.CrossCheckStored,
		Receipt:    "rcpt-1",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, verifyRequest(t, testDID, false))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id.DID(testDID), svc.did)
	assert.Nil(t, svc.captures.DocImage, "no document part means stored-document policy")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["verified"])
	assert.Equal(t, "VERY_HIGH", resp["confidence"])
	assert.Equal(t, "rcpt-1", resp["receipt"])

	scores, ok := resp["scores"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.9075, scores["final"].(float64), 1e-9)
}

func TestHandleVerifyWithDocumentPart(t *testing.T) {
	svc := &stubService{result: &verification.Result{Attempt: verification.Attempt{
		DID:     testDID,
		DocMode: fusion.CrossCheckLive,
	}}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, verifyRequest(t, testDID, true))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("document-data"), svc.captures.DocImage)
}

func TestHandleVerifyMissingDID(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, verifyRequest(t, "", false))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVerifyUnknownDID(t *testing.T) {
	router := newTestRouter(&stubService{err: dErrors.New(dErrors.CodeNotFound, "identity not found")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, verifyRequest(t, testDID, false))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
