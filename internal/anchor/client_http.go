package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPLedger talks to an anchoring gateway over JSON/HTTP. The gateway owns
// wallet, gas, and nonce management; from here it is an opaque
// append-and-receipt service.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLedger constructs a ledger client for the given gateway base URL.
func NewHTTPLedger(baseURL string, client *http.Client) *HTTPLedger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLedger{baseURL: baseURL, client: client}
}

type anchorRequest struct {
	Subject string `json:"subject"`
	Digest  string `json:"digest"`
}

type anchorResponse struct {
	Receipt string `json:"receipt_id"`
}

// Anchor submits a digest and blocks until the gateway confirms or ctx
// expires.
func (l *HTTPLedger) Anchor(ctx context.Context, digest Digest, subject string) (string, error) {
	body, err := json.Marshal(anchorRequest{Subject: subject, Digest: digest.Hex()})
	if err != nil {
		return "", fmt.Errorf("marshal anchor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/anchors", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build anchor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit anchor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("anchor gateway returned %d", resp.StatusCode)
	}

	var out anchorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode anchor response: %w", err)
	}
	if out.Receipt == "" {
		return "", fmt.Errorf("anchor gateway returned empty receipt")
	}
	return out.Receipt, nil
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

// Events lists anchored events for a subject.
func (l *HTTPLedger) Events(ctx context.Context, subject string) ([]Event, error) {
	u := fmt.Sprintf("%s/v1/anchors?subject=%s", l.baseURL, url.QueryEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build events request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anchor gateway returned %d", resp.StatusCode)
	}

	var out eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}
	return out.Events, nil
}
