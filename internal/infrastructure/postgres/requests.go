package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/agency-backoffice/internal/domain"
)

const requestColumns = "id, client_name, client_email, company, phone, service_name, budget, message, status, note, reviewed_by, score, created_at, updated_at"

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type RequestRepo struct {
	db *sql.DB
}

func NewRequestRepo(db *sql.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.ServiceRequest) error {
	score, err := marshalScore(req.Score)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO service_requests (`+requestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		req.RequestID, req.ClientName, req.ClientEmail, req.Company, req.Phone, req.ServiceName,
		req.Budget, req.Message, string(req.Status), req.Note, req.ReviewedBy, score,
		req.CreatedAt, req.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("request %s: %w", req.RequestID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *RequestRepo) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, requestID)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	return req, err
}

func (r *RequestRepo) List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// UpdateReview applies the review only while status still equals expect.
func (r *RequestRepo) UpdateReview(ctx context.Context, req *domain.ServiceRequest, expect domain.RequestStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_requests SET status = $1, note = $2, reviewed_by = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		string(req.Status), req.Note, req.ReviewedBy, req.UpdatedAt, req.RequestID, string(expect),
	)
	if err != nil {
		return fmt.Errorf("update request review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	cur, err := r.Get(ctx, req.RequestID)
	if err != nil {
		return err
	}
	return fmt.Errorf("request %s is %s: %w", req.RequestID, cur.Status, domain.ErrConflict)
}

func (r *RequestRepo) SaveScore(ctx context.Context, requestID string, score *domain.ScoreResult, at time.Time) error {
	raw, err := marshalScore(score)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_requests SET score = $1, updated_at = $2 WHERE id = $3`, raw, at, requestID)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	return nil
}

// marshalScore returns nil for a missing score so the column is NULL.
func marshalScore(s *domain.ScoreResult) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal score: %w", err)
	}
	return string(b), nil
}

func scanRequest(s scanner) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var status string
	var score []byte
	err := s.Scan(
		&req.RequestID, &req.ClientName, &req.ClientEmail, &req.Company, &req.Phone, &req.ServiceName,
		&req.Budget, &req.Message, &status, &req.Note, &req.ReviewedBy, &score,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.RequestStatus(status)
	if len(score) > 0 {
		var sr domain.ScoreResult
		if err := json.Unmarshal(score, &sr); err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		req.Score = &sr
	}
	return &req, nil
}
