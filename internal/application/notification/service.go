package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/eventbus"
	"github.com/agency-backoffice/internal/notification"
)

const defaultRecentLimit = 50

type Service interface {
	ListUnread(ctx context.Context) ([]domain.Notification, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, notificationID string) error
	Sweep(ctx context.Context, retention time.Duration) (int, error)
	SendTest(ctx context.Context, principalID string) error
}

type ServiceDeps struct {
	Store   notification.Store
	Emitter eventbus.Emitter
	Now     func() time.Time
}

type service struct {
	store   notification.Store
	emitter eventbus.Emitter
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{store: deps.Store, emitter: deps.Emitter, now: deps.Now}
}

func (s *service) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	return s.store.ListUnread(ctx)
}

func (s *service) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultRecentLimit
	}
	return s.store.ListRecent(ctx, limit)
}

// MarkAsRead is idempotent: an already read notification is returned as is.
func (s *service) MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	n, err := s.store.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	return s.store.MarkRead(ctx, notificationID)
}

func (s *service) MarkAllAsRead(ctx context.Context) (int, error) {
	return s.store.MarkAllRead(ctx)
}

func (s *service) Delete(ctx context.Context, notificationID string) error {
	return s.store.Delete(ctx, notificationID)
}

func (s *service) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive: %w", domain.ErrBadRequest)
	}
	return s.store.DeleteOlderThan(ctx, s.now().Add(-retention))
}

// SendTest emits a TEST event through the broker so the whole pipeline can
// be checked from the dashboard.
func (s *service) SendTest(ctx context.Context, principalID string) error {
	s.emitter.Emit(ctx, domain.NotificationEvent{
		Type:           domain.EventTest,
		Title:          "Test notification",
		Body:           fmt.Sprintf("Sent by %s at %s", principalID, s.now().UTC().Format(time.RFC3339)),
		DeepLink:       "/notifications",
		BroadcastAdmin: true,
	})
	return nil
}
