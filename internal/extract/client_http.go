package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"anchorid/internal/embedding"
)

// HTTPEmbedder is the JSON/HTTP adapter to the inference sidecar.
type HTTPEmbedder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEmbedder constructs an embedder client for the given sidecar base
// URL.
func NewHTTPEmbedder(baseURL string, client *http.Client) *HTTPEmbedder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEmbedder{baseURL: baseURL, client: client}
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Face extracts a face embedding. A 422 from the sidecar means the model
// found no face and maps to ErrNoFace.
func (e *HTTPEmbedder) Face(ctx context.Context, image []byte) ([]float32, error) {
	out, err := e.embed(ctx, "/v1/embed/face", image)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) != embedding.FaceDim {
		return nil, fmt.Errorf("sidecar returned %d-dim face embedding, want %d", len(out.Embedding), embedding.FaceDim)
	}
	return out.Embedding, nil
}

// Voice extracts a speaker embedding from an audio sample.
func (e *HTTPEmbedder) Voice(ctx context.Context, audio []byte) ([]float32, error) {
	out, err := e.embed(ctx, "/v1/embed/voice", audio)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) != embedding.VoiceDim {
		return nil, fmt.Errorf("sidecar returned %d-dim voice embedding, want %d", len(out.Embedding), embedding.VoiceDim)
	}
	return out.Embedding, nil
}

// Document extracts the combined document embedding and the OCR'd text.
func (e *HTTPEmbedder) Document(ctx context.Context, image []byte) ([]float32, string, error) {
	out, err := e.embed(ctx, "/v1/embed/document", image)
	if err != nil {
		return nil, "", err
	}
	if len(out.Embedding) != embedding.DocDim {
		return nil, "", fmt.Errorf("sidecar returned %d-dim document embedding, want %d", len(out.Embedding), embedding.DocDim)
	}
	return out.Embedding, out.Text, nil
}

func (e *HTTPEmbedder) embed(ctx context.Context, path string, payload []byte) (*embedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrNoFace
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding sidecar returned %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return &out, nil
}
