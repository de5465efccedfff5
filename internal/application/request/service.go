package request

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/eventbus"
	"github.com/agency-backoffice/internal/pkg/id"
	"github.com/agency-backoffice/internal/pkg/validate"
)

// Store persists service requests.
type Store interface {
	Create(ctx context.Context, r *domain.ServiceRequest) error
	Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error)
	List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error)
	UpdateReview(ctx context.Context, r *domain.ServiceRequest, expect domain.RequestStatus) error
	SaveScore(ctx context.Context, requestID string, score *domain.ScoreResult, at time.Time) error
}

// Guard admits or rejects one call for a principal.
type Guard interface {
	Guard(ctx context.Context, principalID string) error
}

type Scorer interface {
	Score(ctx context.Context, lead domain.LeadContext) (*domain.ScoreResult, error)
}

type Service interface {
	SubmitLead(ctx context.Context, in domain.LeadInput) (*domain.ServiceRequest, error)
	Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error)
	List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error)
	Approve(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error)
	Reject(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error)
	Analyze(ctx context.Context, principalID, requestID string) (*domain.ServiceRequest, error)
}

type ServiceDeps struct {
	Store   Store
	Emitter eventbus.Emitter
	Limiter Guard
	Scorer  Scorer
	Logger  *zap.Logger
	Now     func() time.Time
}

type service struct {
	store   Store
	emitter eventbus.Emitter
	limiter Guard
	scorer  Scorer
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{
		store:   deps.Store,
		emitter: deps.Emitter,
		limiter: deps.Limiter,
		scorer:  deps.Scorer,
		logger:  deps.Logger.Named("requests"),
		now:     deps.Now,
	}
}

func deepLink(requestID string) string {
	return "/requests/" + requestID
}

// SubmitLead stores a new PENDING request, alerts the admins and confirms
// receipt to the client.
func (s *service) SubmitLead(ctx context.Context, in domain.LeadInput) (*domain.ServiceRequest, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}
	now := s.now().UTC()
	r := &domain.ServiceRequest{
		RequestID:   id.At(now),
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		Company:     in.Company,
		Phone:       in.Phone,
		ServiceName: in.ServiceName,
		Budget:      in.Budget,
		Message:     in.Message,
		Status:      domain.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, domain.NotificationEvent{
		Type:           domain.EventNewClient,
		Title:          "Klien Baru: " + r.ClientName,
		Body:           fmt.Sprintf("%s requested %s", r.ClientName, r.ServiceName),
		DeepLink:       deepLink(r.RequestID),
		BroadcastAdmin: true,
	})
	s.emitter.Emit(ctx, domain.NotificationEvent{
		Type:           domain.EventPendingVerification,
		Title:          "Request received",
		Body:           fmt.Sprintf("Your request for %s is pending verification.", r.ServiceName),
		DeepLink:       deepLink(r.RequestID),
		RecipientEmail: r.ClientEmail,
		SendEmail:      true,
		ClientName:     r.ClientName,
		ServiceName:    r.ServiceName,
	})
	s.logger.Info("lead submitted", zap.String("request_id", r.RequestID), zap.String("service", r.ServiceName))
	return r, nil
}

func (s *service) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	return s.store.Get(ctx, requestID)
}

func (s *service) List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	switch status {
	case "", domain.RequestPending, domain.RequestVerified, domain.RequestRejected:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrBadRequest)
	}
	return s.store.List(ctx, status)
}

func (s *service) Approve(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error) {
	return s.review(ctx, principalID, requestID, in, domain.RequestVerified)
}

func (s *service) Reject(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error) {
	return s.review(ctx, principalID, requestID, in, domain.RequestRejected)
}

// review moves a PENDING request to status. The notification side effects
// are emitted after the write and cannot fail the review.
func (s *service) review(ctx context.Context, principalID, requestID string, in domain.ReviewInput, status domain.RequestStatus) (*domain.ServiceRequest, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.RequestPending {
		return nil, fmt.Errorf("request %s is already %s: %w", requestID, r.Status, domain.ErrConflict)
	}

	r.Status = status
	r.Note = in.Note
	r.ReviewedBy = principalID
	r.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateReview(ctx, r, domain.RequestPending); err != nil {
		return nil, err
	}

	eventType, verb := domain.EventRequestVerified, "verified"
	if status == domain.RequestRejected {
		eventType, verb = domain.EventRequestRejected, "rejected"
	}
	s.emitter.Emit(ctx, domain.NotificationEvent{
		Type:           eventType,
		Title:          fmt.Sprintf("Request %s: %s", verb, r.ClientName),
		Body:           fmt.Sprintf("%s for %s was %s by %s", r.RequestID, r.ServiceName, verb, principalID),
		DeepLink:       deepLink(r.RequestID),
		RecipientEmail: r.ClientEmail,
		SendEmail:      true,
		BroadcastAdmin: true,
		ClientName:     r.ClientName,
		ServiceName:    r.ServiceName,
		Note:           r.Note,
	})
	s.logger.Info("request reviewed",
		zap.String("request_id", r.RequestID),
		zap.String("status", string(status)),
		zap.String("reviewer", principalID),
	)
	return r, nil
}

// Analyze scores a request with the AI collaborator. Calls are limited per
// principal; a limiter that cannot be reached fails the call.
func (s *service) Analyze(ctx context.Context, principalID, requestID string) (*domain.ServiceRequest, error) {
	if err := s.limiter.Guard(ctx, principalID); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	score, err := s.scorer.Score(ctx, r.LeadContext())
	if err != nil {
		return nil, fmt.Errorf("score request %s: %w", requestID, err)
	}
	at := s.now().UTC()
	if err := s.store.SaveScore(ctx, requestID, score, at); err != nil {
		return nil, err
	}
	r.Score = score
	r.UpdatedAt = at
	return r, nil
}
