package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agency-backoffice/internal/config"
)

// HTTPSender posts messages to a transactional email API that accepts
// {from, to, subject, html} with a bearer key.
type HTTPSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewHTTPSender(cfg config.Email) *HTTPSender {
	return &HTTPSender{
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
		from:   cfg.From,
		client: &http.Client{Timeout: cfg.Timeout + time.Second},
	}
}

type apiMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *HTTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(apiMessage{From: s.from, To: []string{to}, Subject: subject, HTML: htmlBody})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
