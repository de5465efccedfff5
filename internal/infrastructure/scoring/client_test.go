package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agency-backoffice/internal/config"
	"github.com/agency-backoffice/internal/domain"
)

func TestScore_Success(t *testing.T) {
	var got scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"priority":"high","category":"web","reason":"clear budget","confidence":0.82}`))
	}))
	defer srv.Close()

	c := NewClient(config.Scoring{URL: srv.URL, APIKey: "sk-test", Timeout: time.Second})
	res, err := c.Score(context.Background(), domain.LeadContext{ClientName: "Acme", ServiceName: "Web Dev"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", got.Lead.ClientName)
	assert.Equal(t, &domain.ScoreResult{Priority: "high", Category: "web", Reason: "clear budget", Confidence: 0.82}, res)
}

func TestScore_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.Scoring{URL: srv.URL})
	_, err := c.Score(context.Background(), domain.LeadContext{})
	assert.ErrorContains(t, err, "503")
}

func TestScore_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(config.Scoring{URL: srv.URL})
	_, err := c.Score(context.Background(), domain.LeadContext{})
	assert.ErrorContains(t, err, "no priority")
}

func TestScore_NotConfigured(t *testing.T) {
	_, err := NewClient(config.Scoring{}).Score(context.Background(), domain.LeadContext{})
	assert.Error(t, err)
}
