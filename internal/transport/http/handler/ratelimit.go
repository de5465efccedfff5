package handler

import (
	"context"
	"net/http"

	"github.com/agency-backoffice/internal/ratelimit"
)

// LimitStatusReader reports a principal's scoring window.
type LimitStatusReader interface {
	Status(ctx context.Context, principalID string) (ratelimit.Status, error)
}

type RateLimitHandler struct {
	limiter LimitStatusReader
}

func NewRateLimitHandler(l LimitStatusReader) *RateLimitHandler {
	return &RateLimitHandler{limiter: l}
}

type rateLimitResponse struct {
	Limit        int64 `json:"limit"`
	Remaining    int64 `json:"remaining"`
	ResetSeconds int   `json:"reset_seconds"`
}

// Status reports the caller's own window without consuming a request.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalID(w, r)
	if !ok {
		return
	}
	st, err := h.limiter.Status(r.Context(), principal)
	if err != nil {
		httpError(w, err)
		return
	}
	reset := 0
	if st.ResetIn > 0 {
		reset = retrySeconds(st.ResetIn)
	}
	writeJSON(w, http.StatusOK, rateLimitResponse{Limit: st.Limit, Remaining: st.Remaining, ResetSeconds: reset})
}
