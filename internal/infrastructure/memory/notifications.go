// Package memory holds in-process repositories for STORE_DRIVER=memory and
// for tests. Contents are lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/pkg/id"
)

type NotificationRepo struct {
	mu   sync.RWMutex
	rows map[string]domain.Notification
	now  func() time.Time
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{rows: make(map[string]domain.Notification), now: time.Now}
}

// WithClock replaces the clock used to stamp CreatedAt.
func (r *NotificationRepo) WithClock(now func() time.Time) *NotificationRepo {
	r.now = now
	return r
}

func (r *NotificationRepo) Save(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	if n.NotificationID == "" {
		n.NotificationID = id.At(n.CreatedAt)
	}
	r.rows[n.NotificationID] = *n
	return nil
}

func (r *NotificationRepo) Get(_ context.Context, notificationID string) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.rows[notificationID]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return &n, nil
}

func (r *NotificationRepo) ListUnread(_ context.Context) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Notification, 0)
	for _, n := range r.rows {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *NotificationRepo) ListRecent(_ context.Context, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Notification, 0, len(r.rows))
	for _, n := range r.rows {
		out = append(out, n)
	}
	newestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, notificationID string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[notificationID]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	n.IsRead = true
	r.rows[notificationID] = n
	return &n, nil
}

func (r *NotificationRepo) MarkAllRead(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for k, n := range r.rows {
		if !n.IsRead {
			n.IsRead = true
			r.rows[k] = n
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepo) Delete(_ context.Context, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[notificationID]; !ok {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	delete(r.rows, notificationID)
	return nil
}

func (r *NotificationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for k, n := range r.rows {
		if n.CreatedAt.Before(cutoff) {
			delete(r.rows, k)
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored notifications.
func (r *NotificationRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func newestFirst(ns []domain.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].NotificationID > ns[j].NotificationID
		}
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
}
