package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/application/request"
	"github.com/agency-backoffice/internal/config"
	"github.com/agency-backoffice/internal/email"
	"github.com/agency-backoffice/internal/eventbus"
	"github.com/agency-backoffice/internal/infrastructure/dynamo"
	"github.com/agency-backoffice/internal/infrastructure/mail"
	"github.com/agency-backoffice/internal/infrastructure/memory"
	"github.com/agency-backoffice/internal/infrastructure/postgres"
	"github.com/agency-backoffice/internal/notification"
	"github.com/agency-backoffice/internal/pkg/logger"
	"github.com/agency-backoffice/internal/ratelimit"
)

// bootstrap loads .env and the config, and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, lg, nil
}

type stores struct {
	notifications notification.Store
	requests      request.Store
	close         func() error
}

func openStores(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverDynamo:
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, lg)
		return &stores{
			notifications: dynamo.NewNotificationRepo(client, cfg.DynamoTables.Notifications),
			requests:      dynamo.NewRequestRepo(client, cfg.DynamoTables.Requests),
			close:         func() error { return nil },
		}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &stores{
			notifications: postgres.NewNotificationRepo(db),
			requests:      postgres.NewRequestRepo(db),
			close:         db.Close,
		}, nil
	default:
		lg.Warn("using in-memory store; data is lost on restart")
		return &stores{
			notifications: memory.NewNotificationRepo(),
			requests:      memory.NewRequestRepo(),
			close:         func() error { return nil },
		}, nil
	}
}

func openBroker(ctx context.Context, cfg *config.Config, lg *zap.Logger) (eventbus.Broker, error) {
	if cfg.Broker.Driver == config.DriverNATS {
		return eventbus.NewNATSBroker(ctx, eventbus.NATSConfig{
			URL:           cfg.Broker.NATSURL,
			Stream:        cfg.Broker.Stream,
			SubjectPrefix: cfg.Broker.SubjectPrefix,
		}, lg)
	}
	return eventbus.NewMemoryBroker(cfg.Broker.QueueCapacity), nil
}

// openLimiter returns the scoring limiter and, for the memory store, a janitor to run.
func openLimiter(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*ratelimit.Limiter, func(context.Context), error) {
	opts := ratelimit.Options{
		MaxRequests:  cfg.RateLimit.MaxRequests,
		Window:       cfg.RateLimit.Window,
		StoreTimeout: cfg.RateLimit.StoreTimeout,
	}
	if cfg.RateLimit.Driver == config.DriverRedis {
		rs := ratelimit.NewRedisStore(ratelimit.NewRedisClient(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			// Fail-closed at request time; the process still starts.
			lg.Error("redis unreachable at startup", zap.String("addr", cfg.RateLimit.RedisAddr), zap.Error(err))
		}
		return ratelimit.New(rs, opts, lg), nil, nil
	}
	ms := ratelimit.NewMemoryStore()
	janitor := func(ctx context.Context) { ms.RunJanitor(ctx, cfg.RateLimit.Window) }
	return ratelimit.New(ms, opts, lg), janitor, nil
}

func newSender(cfg *config.Config, lg *zap.Logger) (email.Sender, error) {
	switch cfg.Email.Transport {
	case config.EmailSMTP:
		return mail.NewSMTPSender(cfg.Email), nil
	case config.EmailHTTP:
		return mail.NewHTTPSender(cfg.Email), nil
	case config.EmailLog:
		return mail.NewLogSender(lg), nil
	}
	return nil, fmt.Errorf("unknown email transport %q", cfg.Email.Transport)
}
