package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
)

// Emitter is what business services depend on to raise notification events.
type Emitter interface {
	Emit(ctx context.Context, event domain.NotificationEvent)
}

type PublisherOptions struct {
	// Buffer bounds the outbound queue; events beyond it are dropped and logged.
	Buffer int
	// Timeout bounds each broker write.
	Timeout time.Duration
}

type outbound struct {
	key       RoutingKey
	eventType domain.EventType
	payload   []byte
}

// Publisher hands events to the broker without blocking the caller. Publish
// only enqueues; a single forwarder goroutine performs the broker writes in
// enqueue order. No publish failure ever reaches the caller.
type Publisher struct {
	broker Broker
	opts   PublisherOptions
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	out    chan outbound
	done   chan struct{}
}

var _ Emitter = (*Publisher)(nil)

// NewPublisher starts the forwarder. Call Close to drain it.
func NewPublisher(broker Broker, opts PublisherOptions, logger *zap.Logger) *Publisher {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	p := &Publisher{
		broker: broker,
		opts:   opts,
		logger: logger.Named("publisher"),
		out:    make(chan outbound, opts.Buffer),
		done:   make(chan struct{}),
	}
	go p.forward()
	return p
}

// Publish enqueues event for key and returns immediately.
func (p *Publisher) Publish(_ context.Context, key RoutingKey, event domain.NotificationEvent) {
	payload, err := event.Encode()
	if err != nil {
		p.drop(key, event.Type, "encode", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(key, event.Type, "closed", ErrBrokerClosed)
		return
	}
	select {
	case p.out <- outbound{key: key, eventType: event.Type, payload: payload}:
		outboundDepth.Set(float64(len(p.out)))
	default:
		p.drop(key, event.Type, "overflow", ErrQueueFull)
	}
}

// Emit routes event by its flags: admin-broadcast when BroadcastAdmin, email
// when SendEmail and a recipient is present.
func (p *Publisher) Emit(ctx context.Context, event domain.NotificationEvent) {
	if event.BroadcastAdmin {
		p.Publish(ctx, KeyAdminBroadcast, event)
	}
	if event.SendEmail {
		if event.RecipientEmail == "" {
			p.logger.Warn("email requested without recipient",
				zap.String("type", string(event.Type)),
				zap.String("title", event.Title),
			)
			return
		}
		p.Publish(ctx, KeyEmail, event)
	}
}

func (p *Publisher) drop(key RoutingKey, et domain.EventType, reason string, err error) {
	publishedTotal.WithLabelValues(string(key), "dropped").Inc()
	p.logger.Error("event dropped before broker",
		zap.String("key", string(key)),
		zap.String("type", string(et)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (p *Publisher) forward() {
	defer close(p.done)
	for ob := range p.out {
		outboundDepth.Set(float64(len(p.out)))
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
		err := p.broker.Publish(ctx, ob.key, ob.payload)
		cancel()
		if err != nil {
			publishedTotal.WithLabelValues(string(ob.key), "failed").Inc()
			p.logger.Error("publish failed",
				zap.String("key", string(ob.key)),
				zap.String("type", string(ob.eventType)),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrPublish, err)),
			)
			continue
		}
		publishedTotal.WithLabelValues(string(ob.key), "ok").Inc()
	}
}

// Close stops accepting events and waits for buffered ones to reach the
// broker, or for ctx to end. Events still buffered at that point are lost.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoopEmitter discards events. Used when notifications are disabled.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, domain.NotificationEvent) {}
