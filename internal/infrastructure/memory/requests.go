package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agency-backoffice/internal/domain"
)

type RequestRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.ServiceRequest
}

func NewRequestRepo() *RequestRepo {
	return &RequestRepo{rows: make(map[string]domain.ServiceRequest)}
}

func (r *RequestRepo) Create(_ context.Context, req *domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[req.RequestID]; ok {
		return fmt.Errorf("request %s: %w", req.RequestID, domain.ErrConflict)
	}
	r.rows[req.RequestID] = *req
	return nil
}

func (r *RequestRepo) Get(_ context.Context, requestID string) (*domain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.rows[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	return &req, nil
}

// List returns requests newest first; an empty status matches all.
func (r *RequestRepo) List(_ context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ServiceRequest, 0, len(r.rows))
	for _, req := range r.rows {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	return out, nil
}

// UpdateReview stores the review fields of req if the stored status still
// equals expect, and fails with domain.ErrConflict otherwise.
func (r *RequestRepo) UpdateReview(_ context.Context, req *domain.ServiceRequest, expect domain.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[req.RequestID]
	if !ok {
		return fmt.Errorf("request %s: %w", req.RequestID, domain.ErrNotFound)
	}
	if cur.Status != expect {
		return fmt.Errorf("request %s is %s: %w", req.RequestID, cur.Status, domain.ErrConflict)
	}
	cur.Status = req.Status
	cur.Note = req.Note
	cur.ReviewedBy = req.ReviewedBy
	cur.UpdatedAt = req.UpdatedAt
	r.rows[req.RequestID] = cur
	return nil
}

func (r *RequestRepo) SaveScore(_ context.Context, requestID string, score *domain.ScoreResult, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	s := *score
	cur.Score = &s
	cur.UpdatedAt = at
	r.rows[requestID] = cur
	return nil
}
