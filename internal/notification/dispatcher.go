package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
)

// Dispatcher handles events from the admin-broadcast queue.
type Dispatcher struct {
	store  Store
	push   Broadcaster
	logger *zap.Logger
}

func NewDispatcher(store Store, push Broadcaster, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, push: push, logger: logger.Named("notification")}
}

// Handle persists the event as a notification, then pushes it to TopicAdmin.
// A failed push is logged and leaves the stored row in place.
func (d *Dispatcher) Handle(ctx context.Context, event domain.NotificationEvent) error {
	n := domain.NewNotificationFromEvent(event)
	if err := d.store.Save(ctx, n); err != nil {
		return fmt.Errorf("persist notification %q: %w", event.Title, err)
	}

	if err := d.push.Broadcast(TopicAdmin, n.DTO()); err != nil {
		d.logger.Warn("real-time push failed",
			zap.String("notification_id", n.NotificationID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
	return nil
}
