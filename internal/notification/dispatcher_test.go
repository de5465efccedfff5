package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/infrastructure/memory"
)

type pushed struct {
	topic   string
	payload any
}

type fakePush struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (f *fakePush) Broadcast(topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pushed{topic: topic, payload: payload})
	return f.err
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Save(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockStore) Get(ctx context.Context, id string) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	args := m.Called(ctx)
	ns, _ := args.Get(0).([]domain.Notification)
	return ns, args.Error(1)
}
func (m *mockStore) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, limit)
	ns, _ := args.Get(0).([]domain.Notification)
	return ns, args.Error(1)
}
func (m *mockStore) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) MarkAllRead(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func TestDispatcher_PersistsThenBroadcasts(t *testing.T) {
	store := memory.NewNotificationRepo()
	push := &fakePush{}
	d := NewDispatcher(store, push, zap.NewNop())

	event := domain.NotificationEvent{
		Type:           domain.EventNewClient,
		Title:          "Klien Baru: Acme",
		Body:           "Acme requested Web Dev",
		DeepLink:       "/requests/01HX",
		BroadcastAdmin: true,
	}
	require.NoError(t, d.Handle(context.Background(), event))

	rows, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, domain.EventNewClient, row.Type)
	assert.Equal(t, "Klien Baru: Acme", row.Title)
	assert.Equal(t, "Acme requested Web Dev", row.Message)
	assert.Equal(t, "/requests/01HX", row.Link)
	assert.False(t, row.IsRead)

	require.Len(t, push.sent, 1)
	assert.Equal(t, TopicAdmin, push.sent[0].topic)
	assert.Equal(t, row.DTO(), push.sent[0].payload)
}

func TestDispatcher_PushFailureKeepsRow(t *testing.T) {
	store := memory.NewNotificationRepo()
	push := &fakePush{err: errors.New("hub closed")}
	d := NewDispatcher(store, push, zap.NewNop())

	err := d.Handle(context.Background(), domain.NotificationEvent{Type: domain.EventTest, Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestDispatcher_PersistFailureSkipsPush(t *testing.T) {
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	push := &fakePush{}
	d := NewDispatcher(store, push, zap.NewNop())

	err := d.Handle(context.Background(), domain.NotificationEvent{Type: domain.EventTest, Title: "t"})
	assert.ErrorContains(t, err, "connection reset")
	assert.Empty(t, push.sent)
	store.AssertExpectations(t)
}

func TestSweeper_DeletesPastRetention(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &mockStore{}
	store.On("DeleteOlderThan", mock.Anything, now.Add(-30*24*time.Hour)).Return(4, nil)

	s := NewSweeper(store, time.Hour, 30*24*time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	store.AssertNumberOfCalls(t, "DeleteOlderThan", 1)
}

func TestSweeper_NonPositiveSettingsDoNothing(t *testing.T) {
	for _, tc := range []struct {
		name                string
		interval, retention time.Duration
	}{
		{"ZeroRetention", time.Hour, 0},
		{"NegativeRetention", time.Hour, -time.Hour},
		{"ZeroInterval", 0, time.Hour},
		{"NegativeInterval", -time.Second, time.Hour},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{}
			s := NewSweeper(store, tc.interval, tc.retention, zap.NewNop())

			done := make(chan struct{})
			go func() {
				defer close(done)
				s.Run(context.Background())
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Run did not return")
			}
			store.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
		})
	}
}
