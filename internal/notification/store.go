// Package notification turns admin-broadcast events into persisted
// notifications and pushes them to connected dashboards.
package notification

import (
	"context"
	"time"

	"github.com/agency-backoffice/internal/domain"
)

// TopicAdmin is the real-time topic every admin dashboard subscribes to.
const TopicAdmin = "admin.notifications"

// Store persists notifications. Save assigns NotificationID and CreatedAt
// when they are empty. Lookups of a missing id return domain.ErrNotFound.
type Store interface {
	Save(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	// ListUnread returns unread notifications, newest first.
	ListUnread(ctx context.Context) ([]domain.Notification, error)
	// ListRecent returns at most limit notifications, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, notificationID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Broadcaster pushes a payload to the subscribers of a topic. Delivery is
// best effort; offline subscribers miss the message.
type Broadcaster interface {
	Broadcast(topic string, payload any) error
}
