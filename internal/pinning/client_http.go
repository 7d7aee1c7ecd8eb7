package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPPinner talks to a pinning gateway (IPFS-compatible add endpoint) over
// multipart HTTP.
type HTTPPinner struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPPinner constructs a pinner for the given gateway base URL. The
// token is sent as a bearer credential when non-empty.
func NewHTTPPinner(baseURL, token string, client *http.Client) *HTTPPinner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPPinner{baseURL: baseURL, token: token, client: client}
}

type pinResponse struct {
	CID string `json:"cid"`
}

// Pin uploads the payload under the given name and returns the CID.
func (p *HTTPPinner) Pin(ctx context.Context, name string, payload []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build pin form: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("write pin payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize pin form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/pins", &body)
	if err != nil {
		return "", fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call pinning gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("pinning gateway returned %d", resp.StatusCode)
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if out.CID == "" {
		return "", fmt.Errorf("pinning gateway returned empty cid")
	}
	return out.CID, nil
}
