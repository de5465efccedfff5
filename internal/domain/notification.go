package domain

import "time"

// Notification is the persisted admin notification. ID and CreatedAt are
// assigned by the store on insert; only IsRead changes afterwards.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	Type           EventType `json:"type" dynamodbav:"type"`
	Title          string    `json:"title" dynamodbav:"title"`
	Message        string    `json:"message" dynamodbav:"message"`
	Link           string    `json:"link" dynamodbav:"link"`
	IsRead         bool      `json:"isRead" dynamodbav:"is_read"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// NotificationDTO is the payload pushed to real-time subscribers.
type NotificationDTO struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n *Notification) DTO() NotificationDTO {
	return NotificationDTO{
		ID:        n.NotificationID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// NewNotificationFromEvent maps the event fields that are persisted.
func NewNotificationFromEvent(e NotificationEvent) *Notification {
	return &Notification{
		Type:    e.Type,
		Title:   e.Title,
		Message: e.Body,
		Link:    e.DeepLink,
	}
}
