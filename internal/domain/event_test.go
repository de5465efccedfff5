package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationEvent_EncodeDecode(t *testing.T) {
	in := NotificationEvent{
		Type:           EventRequestVerified,
		Title:          "Request verified",
		Body:           "Web Dev for Acme",
		DeepLink:       "/requests/01H",
		RecipientEmail: "a@b.com",
		SendEmail:      true,
		ClientName:     "Acme",
		ServiceName:    "Web Dev",
		Note:           "Jane Doe",
	}
	data, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeNotificationEvent(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeNotificationEvent_UnknownType(t *testing.T) {
	_, err := DecodeNotificationEvent([]byte(`{"type":"SOMETHING_ELSE","title":"x"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestDecodeNotificationEvent_Garbage(t *testing.T) {
	_, err := DecodeNotificationEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range AllEventTypes() {
		assert.True(t, et.Valid(), et)
	}
	assert.False(t, EventType("").Valid())
}

func TestRateLimitExceededError_UnwrapsToSentinel(t *testing.T) {
	var err error = &RateLimitExceededError{RetryAfter: 90 * time.Second}
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "1m30s")
}

func TestNotification_DTO(t *testing.T) {
	now := time.Now().UTC()
	n := NewNotificationFromEvent(NotificationEvent{Type: EventNewClient, Title: "Klien Baru: Acme", Body: "b", DeepLink: "/x"})
	n.NotificationID = "n1"
	n.CreatedAt = now
	dto := n.DTO()
	assert.Equal(t, "n1", dto.ID)
	assert.Equal(t, "b", dto.Message)
	assert.Equal(t, "/x", dto.Link)
	assert.False(t, dto.IsRead)
	assert.Equal(t, now, dto.CreatedAt)
}
