package domain

import (
	"encoding/json"
	"fmt"
)

// EventType identifies the business event behind a notification.
type EventType string

const (
	EventNewClient           EventType = "NEW_CLIENT"
	EventPendingVerification EventType = "PENDING_VERIFICATION"
	EventRequestVerified     EventType = "REQUEST_VERIFIED"
	EventRequestRejected     EventType = "REQUEST_REJECTED"
	EventTest                EventType = "TEST"
)

// AllEventTypes lists every event type in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventNewClient,
		EventPendingVerification,
		EventRequestVerified,
		EventRequestRejected,
		EventTest,
	}
}

func (t EventType) Valid() bool {
	for _, v := range AllEventTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// NotificationEvent is the broker payload. It is immutable once published and
// must round-trip through JSON for consumers running in another process.
type NotificationEvent struct {
	Type           EventType `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	DeepLink       string    `json:"deepLink,omitempty"`
	RecipientEmail string    `json:"recipientEmail,omitempty"`
	SendEmail      bool      `json:"sendEmail"`
	BroadcastAdmin bool      `json:"broadcastAdmin"`

	// Template context, read only by the email consumer.
	ClientName  string `json:"clientName,omitempty"`
	ServiceName string `json:"serviceName,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Encode serialises the event as the wire payload.
func (e NotificationEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeNotificationEvent parses a wire payload and rejects unknown event types.
func DecodeNotificationEvent(data []byte) (NotificationEvent, error) {
	var e NotificationEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return NotificationEvent{}, fmt.Errorf("decode notification event: %w", err)
	}
	if !e.Type.Valid() {
		return NotificationEvent{}, fmt.Errorf("decode notification event: unknown type %q: %w", e.Type, ErrBadRequest)
	}
	return e, nil
}
