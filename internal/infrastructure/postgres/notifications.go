package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/pkg/id"
)

const notificationColumns = "id, type, title, message, link, is_read, created_at"

type NotificationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db, now: time.Now}
}

func (r *NotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	if n.NotificationID == "" {
		n.NotificationID = id.At(n.CreatedAt)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.NotificationID, string(n.Type), n.Title, n.Message, n.Link, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, notificationID)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return n, err
}

func (r *NotificationRepo) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	return r.list(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE NOT is_read ORDER BY created_at DESC, id DESC`)
}

func (r *NotificationRepo) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	return r.list(ctx,
		`SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (r *NotificationRepo) list(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING `+notificationColumns, notificationID)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return n, err
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE NOT is_read`)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *NotificationRepo) Delete(ctx context.Context, notificationID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, notificationID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var typ string
	if err := s.Scan(&n.NotificationID, &typ, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.EventType(typ)
	return &n, nil
}
