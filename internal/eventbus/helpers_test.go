package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/agency-backoffice/internal/domain"
)

func testEvent(t domain.EventType, title string) domain.NotificationEvent {
	return domain.NotificationEvent{
		Type:           t,
		Title:          title,
		Body:           title + " body",
		DeepLink:       "/requests/01",
		BroadcastAdmin: true,
	}
}

// downBroker fails every publish, like a broker that is unreachable.
type downBroker struct {
	mu    sync.Mutex
	calls int
}

func (b *downBroker) Publish(context.Context, RoutingKey, []byte) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return errors.New("dial tcp 127.0.0.1:4222: connection refused")
}

func (b *downBroker) Bind(context.Context, RoutingKey, string) (Queue, error) {
	return nil, errors.New("broker unreachable")
}

func (b *downBroker) Close() error { return nil }

func (b *downBroker) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// blockingBroker holds every publish until release is closed.
type blockingBroker struct {
	release chan struct{}
}

func (b *blockingBroker) Publish(ctx context.Context, _ RoutingKey, _ []byte) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingBroker) Bind(context.Context, RoutingKey, string) (Queue, error) {
	return nil, errors.New("not supported")
}

func (b *blockingBroker) Close() error { return nil }

// recorder collects handled events.
type recorder struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	seen   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan struct{}, 64)}
}

func (r *recorder) Handle(_ context.Context, e domain.NotificationEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Title)
	}
	return out
}
