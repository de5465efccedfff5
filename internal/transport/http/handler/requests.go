package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agency-backoffice/internal/application/request"
	"github.com/agency-backoffice/internal/domain"
)

// RequestHandler serves lead intake and the admin review workflow.
type RequestHandler struct {
	svc request.Service
}

func NewRequestHandler(svc request.Service) *RequestHandler { return &RequestHandler{svc: svc} }

func (h *RequestHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var in domain.LeadInput
	if !decodeJSON(w, r, &in) {
		return
	}
	req, err := h.svc.SubmitLead(r.Context(), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), domain.RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items))
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.Approve)
}

func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.Reject)
}

type reviewFunc func(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error)

// review accepts an empty body as an empty note.
func (h *RequestHandler) review(w http.ResponseWriter, r *http.Request, do reviewFunc) {
	principal, ok := principalID(w, r)
	if !ok {
		return
	}
	var in domain.ReviewInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := do(r.Context(), principal, chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.Analyze(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
