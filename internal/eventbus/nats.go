package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// NATSConfig configures the JetStream-backed broker.
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAge        time.Duration
	FetchWait     time.Duration
}

func (c *NATSConfig) setDefaults() {
	if c.Stream == "" {
		c.Stream = "NOTIFICATIONS"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "agency.notifications"
	}
	if c.AckWait <= 0 {
		// a handler at its timeout must still ack before redelivery
		c.AckWait = 2 * DefaultHandlerTimeout
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 72 * time.Hour
	}
	if c.FetchWait <= 0 {
		c.FetchWait = time.Second
	}
}

// NATSBroker stores messages in a JetStream stream (file storage) and gives
// every binding its own durable pull consumer, so a message is kept until
// each bound queue acknowledges it.
type NATSBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    NATSConfig
	logger *zap.Logger
}

// NewNATSBroker connects with automatic reconnection and creates or updates
// the stream. Extra nats.Option values are appended to the defaults.
func NewNATSBroker(ctx context.Context, cfg NATSConfig, logger *zap.Logger, opts ...nats.Option) (*NATSBroker, error) {
	cfg.setDefaults()
	log := logger.Named("nats")
	defaults := []nats.Option{
		nats.Name("agency-backoffice"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(cfg.URL, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating stream %s: %w", cfg.Stream, err)
	}
	return &NATSBroker{conn: nc, js: js, cfg: cfg, logger: log}, nil
}

func (b *NATSBroker) subject(key RoutingKey) string {
	return b.cfg.SubjectPrefix + "." + string(key)
}

// Publish returns once the stream has persisted the message.
func (b *NATSBroker) Publish(ctx context.Context, key RoutingKey, payload []byte) error {
	if b.conn.IsClosed() {
		return ErrBrokerClosed
	}
	if _, err := b.js.Publish(ctx, b.subject(key), payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", b.subject(key), err)
	}
	return nil
}

func (b *NATSBroker) Bind(ctx context.Context, key RoutingKey, queue string) (Queue, error) {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       queue,
		FilterSubject: b.subject(key),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.cfg.AckWait,
		MaxDeliver:    b.cfg.MaxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("binding %s to %s: %w", queue, key, err)
	}
	return &natsQueue{conn: b.conn, cons: cons, wait: b.cfg.FetchWait}, nil
}

func (b *NATSBroker) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

type natsQueue struct {
	conn *nats.Conn
	cons jetstream.Consumer
	wait time.Duration
}

// Next polls one message at a time; each poll waits at most FetchWait so a
// cancelled ctx is noticed promptly.
func (q *natsQueue) Next(ctx context.Context) (Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.conn.IsClosed() {
			return nil, ErrBrokerClosed
		}
		batch, err := q.cons.Fetch(1, jetstream.FetchMaxWait(q.wait))
		if err != nil {
			return nil, err
		}
		if msg, ok := <-batch.Messages(); ok {
			return &natsDelivery{msg: msg}, nil
		}
		if err := batch.Error(); err != nil && !isFetchTimeout(err) {
			return nil, err
		}
	}
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

type natsDelivery struct {
	msg jetstream.Msg
}

func (d *natsDelivery) Data() []byte { return d.msg.Data() }
func (d *natsDelivery) Ack() error   { return d.msg.Ack() }
func (d *natsDelivery) Nak() error   { return d.msg.Nak() }

func (d *natsDelivery) Attempt() int {
	md, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(md.NumDelivered)
}
