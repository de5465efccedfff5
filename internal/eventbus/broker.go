// Package eventbus carries NotificationEvents from business actions to the
// notification and email consumers through a durable broker.
package eventbus

import (
	"context"
	"errors"
)

// RoutingKey addresses a class of consumers.
type RoutingKey string

const (
	KeyAdminBroadcast RoutingKey = "admin-broadcast"
	KeyEmail          RoutingKey = "email"
)

var (
	ErrBrokerClosed = errors.New("broker closed")
	ErrQueueFull    = errors.New("queue full")
)

// Broker is the transport between publisher and consumers. A message
// published on a key is delivered to every queue bound to that key, at least once.
type Broker interface {
	Publish(ctx context.Context, key RoutingKey, payload []byte) error
	// Bind creates the named queue on key, or attaches to it when it already
	// exists. Messages are shared between callers binding the same name.
	Bind(ctx context.Context, key RoutingKey, queue string) (Queue, error)
	Close() error
}

// Queue is the pull side of one binding.
type Queue interface {
	// Next blocks until a message arrives, ctx is done or the broker closes.
	Next(ctx context.Context) (Delivery, error)
}

// Delivery is one received message. Unacknowledged deliveries are redelivered.
type Delivery interface {
	Data() []byte
	Ack() error
	Nak() error
	// Attempt is 1 on first delivery.
	Attempt() int
}
