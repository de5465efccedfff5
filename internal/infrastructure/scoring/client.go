// Package scoring calls the external AI lead-scoring service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agency-backoffice/internal/config"
	"github.com/agency-backoffice/internal/domain"
)

type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(cfg config.Scoring) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{url: cfg.URL, apiKey: cfg.APIKey, http: &http.Client{Timeout: timeout}}
}

type scoreRequest struct {
	Lead domain.LeadContext `json:"lead"`
}

// Score posts the lead context and decodes the result. Non-2xx responses
// and results without a priority are errors.
func (c *Client) Score(ctx context.Context, lead domain.LeadContext) (*domain.ScoreResult, error) {
	if c.url == "" {
		return nil, fmt.Errorf("scoring service not configured")
	}
	body, err := json.Marshal(scoreRequest{Lead: lead})
	if err != nil {
		return nil, fmt.Errorf("marshal lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out domain.ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}
	if out.Priority == "" {
		return nil, fmt.Errorf("scoring service returned no priority")
	}
	return &out, nil
}
