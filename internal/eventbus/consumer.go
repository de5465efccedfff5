package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
)

// Handler performs one consumer's side effect for an event.
type Handler interface {
	Handle(ctx context.Context, event domain.NotificationEvent) error
}

type HandlerFunc func(ctx context.Context, event domain.NotificationEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event domain.NotificationEvent) error {
	return f(ctx, event)
}

// Binding attaches a handler to a named queue on a routing key.
type Binding struct {
	Key     RoutingKey
	Queue   string
	Handler Handler
}

// DefaultHandlerTimeout bounds a handler call when ConsumerOptions leaves it
// unset. Broker redelivery windows must be longer.
const DefaultHandlerTimeout = 30 * time.Second

type ConsumerOptions struct {
	// HandlerTimeout bounds one handler call.
	HandlerTimeout time.Duration
	// RetryDelay is the pause after a failed receive.
	RetryDelay time.Duration
}

// Consumer runs one worker goroutine per binding. Workers share nothing but
// the broker, so a failing handler never stalls another binding.
//
// Every delivery is acknowledged once its handler returns, whether it
// succeeded or not; failures are logged, not redelivered. Only a crash
// before the ack leads to redelivery.
type Consumer struct {
	broker   Broker
	bindings []Binding
	opts     ConsumerOptions
	logger   *zap.Logger
	queues   []Queue
}

func NewConsumer(broker Broker, opts ConsumerOptions, logger *zap.Logger, bindings ...Binding) *Consumer {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = DefaultHandlerTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Consumer{broker: broker, bindings: bindings, opts: opts, logger: logger.Named("consumer")}
}

// Bind declares every queue. Call it before the first publish when the
// broker drops messages for keys with no queue, as the memory broker does.
func (c *Consumer) Bind(ctx context.Context) error {
	if c.queues != nil {
		return nil
	}
	queues := make([]Queue, len(c.bindings))
	for i, b := range c.bindings {
		q, err := c.broker.Bind(ctx, b.Key, b.Queue)
		if err != nil {
			return fmt.Errorf("bind %s/%s: %w", b.Key, b.Queue, err)
		}
		queues[i] = q
	}
	c.queues = queues
	return nil
}

// Run binds every queue if Bind was not called, then blocks until ctx is done
// and all workers have finished their in-flight message. A bind failure is
// returned before any worker starts.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Bind(ctx); err != nil {
		return err
	}
	queues := c.queues

	var wg sync.WaitGroup
	for i, b := range c.bindings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx, b, queues[i])
		}()
	}
	c.logger.Info("consumers started", zap.Int("bindings", len(c.bindings)))
	wg.Wait()
	c.logger.Info("consumers stopped")
	return nil
}

func (c *Consumer) work(ctx context.Context, b Binding, q Queue) {
	log := c.logger.With(zap.String("key", string(b.Key)), zap.String("queue", b.Queue))
	for {
		d, err := q.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrBrokerClosed) {
				return
			}
			log.Warn("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.opts.RetryDelay):
			}
			continue
		}
		c.process(ctx, b, d, log)
	}
}

func (c *Consumer) process(ctx context.Context, b Binding, d Delivery, log *zap.Logger) {
	event, decodeErr := domain.DecodeNotificationEvent(d.Data())
	var handleErr error
	if decodeErr == nil {
		handleErr = c.invoke(ctx, b.Handler, event)
	}

	if err := d.Ack(); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}

	switch {
	case decodeErr != nil:
		consumedTotal.WithLabelValues(string(b.Key), "invalid").Inc()
		log.Error("discarding undecodable message",
			zap.ByteString("payload", d.Data()),
			zap.Error(decodeErr),
		)
	case handleErr != nil:
		consumedTotal.WithLabelValues(string(b.Key), "failed").Inc()
		log.Error("consumer processing failed",
			zap.String("type", string(event.Type)),
			zap.String("title", event.Title),
			zap.String("link", event.DeepLink),
			zap.Int("attempt", d.Attempt()),
			zap.Error(handleErr),
		)
	default:
		consumedTotal.WithLabelValues(string(b.Key), "ok").Inc()
		log.Debug("event handled", zap.String("type", string(event.Type)))
	}
}

// invoke runs the handler detached from ctx cancellation, so shutdown lets
// the in-flight message finish, and turns a panic into an error.
func (c *Consumer) invoke(ctx context.Context, h Handler, event domain.NotificationEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.HandlerTimeout)
	defer cancel()
	return h.Handle(hctx, event)
}
