package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	notifapp "github.com/agency-backoffice/internal/application/notification"
	"github.com/agency-backoffice/internal/application/request"
	"github.com/agency-backoffice/internal/email"
	"github.com/agency-backoffice/internal/eventbus"
	jwtinfra "github.com/agency-backoffice/internal/infrastructure/jwt"
	"github.com/agency-backoffice/internal/infrastructure/scoring"
	"github.com/agency-backoffice/internal/notification"
	"github.com/agency-backoffice/internal/realtime"
	transporthttp "github.com/agency-backoffice/internal/transport/http"
	appmiddleware "github.com/agency-backoffice/internal/transport/http/middleware"
)

// Queue names; several processes bound to the same name share its messages.
const (
	adminQueue = "admin-notifications"
	emailQueue = "email-delivery"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the notification consumers and the retention sweeper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.close() }()

	limiter, janitor, err := openLimiter(ctx, cfg, lg)
	if err != nil {
		return err
	}
	sender, err := newSender(cfg, lg)
	if err != nil {
		return err
	}
	provider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	broker, err := openBroker(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("open broker: %w", err)
	}
	// Closed by the shutdown sequence once it is reached.
	brokerClosed := false
	defer func() {
		if !brokerClosed {
			_ = broker.Close()
		}
	}()

	hub := realtime.NewHub(cfg.AllowedOrigins, lg)
	publisher := eventbus.NewPublisher(broker, eventbus.PublisherOptions{
		Buffer:  cfg.Broker.PublishBuffer,
		Timeout: cfg.Broker.PublishTimeout,
	}, lg)
	mailer := email.NewDispatcher(sender, cfg.Email.Timeout, lg)

	consumer := eventbus.NewConsumer(broker, eventbus.ConsumerOptions{}, lg,
		eventbus.Binding{Key: eventbus.KeyAdminBroadcast, Queue: adminQueue, Handler: notification.NewDispatcher(st.notifications, hub, lg)},
		eventbus.Binding{Key: eventbus.KeyEmail, Queue: emailQueue, Handler: mailer},
	)

	if err := consumer.Bind(ctx); err != nil {
		return fmt.Errorf("bind queues: %w", err)
	}

	// Consumers and background loops stop on workers cancel, after HTTP is drained.
	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	var wg sync.WaitGroup
	consumerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumerErr <- consumer.Run(workers)
	}()
	leadLimiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	background := []func(context.Context){
		notification.NewSweeper(st.notifications, cfg.SweepInterval, cfg.NotificationRetention, lg).Run,
		leadLimiter.RunCleanup,
	}
	if janitor != nil {
		background = append(background, janitor)
	}
	for _, run := range background {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workers)
		}(run)
	}

	deps := &transporthttp.Deps{
		Requests: request.NewService(request.ServiceDeps{
			Store:   st.requests,
			Emitter: publisher,
			Limiter: limiter,
			Scorer:  scoring.NewClient(cfg.Scoring),
			Logger:  lg,
		}),
		Notifications: notifapp.NewService(notifapp.ServiceDeps{Store: st.notifications, Emitter: publisher}),
		Limiter:       limiter,
		Emails:        mailer,
		Hub:           hub,
		Verifier:      provider,
		LeadLimiter:   leadLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		lg.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreDriver),
			zap.String("broker", cfg.Broker.Driver),
			zap.String("ratelimit", cfg.RateLimit.Driver),
			zap.String("email", cfg.Email.Transport),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		lg.Error("server error", zap.Error(runErr))
	case runErr = <-consumerErr:
		lg.Error("consumer stopped", zap.Error(runErr))
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// HTTP first so no new events are emitted, then flush the publisher, then
	// let consumers finish in-flight messages.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	if err := publisher.Close(shutdownCtx); err != nil {
		lg.Warn("publisher close", zap.Error(err))
	}
	cancelWorkers()
	waitGroup(shutdownCtx, &wg, lg)
	brokerClosed = true
	if err := broker.Close(); err != nil {
		lg.Warn("broker close", zap.Error(err))
	}
	hub.Close()
	lg.Info("server stopped")
	return runErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup, lg *zap.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		lg.Warn("workers did not stop before the shutdown deadline")
	}
}
