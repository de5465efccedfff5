package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agency-backoffice/internal/config"
	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/transport/http/handler"
	appmiddleware "github.com/agency-backoffice/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	leadRL := func(next http.Handler) http.Handler { return next }
	if deps.LeadLimiter != nil {
		leadRL = deps.LeadLimiter.Limit
	}

	healthH := handler.NewHealthHandler()
	requestH := handler.NewRequestHandler(deps.Requests)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	limitH := handler.NewRateLimitHandler(deps.Limiter)
	emailH := handler.NewEmailHandler(deps.Emails, deps.BatchTimeout)
	wsH := handler.NewWSHandler(deps.Hub)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(leadRL).Post("/leads", requestH.SubmitLead)

		// ── Websocket: the browser passes the token as ?token= ───────────────
		r.With(appmiddleware.AuthQuery(deps.Verifier), appmiddleware.RequireRole(domain.RoleAdmin)).
			Get("/ws", wsH.Serve)

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Verifier))
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/requests", requestH.List)
			r.Get("/requests/{id}", requestH.Get)
			r.Post("/requests/{id}/approve", requestH.Approve)
			r.Post("/requests/{id}/reject", requestH.Reject)
			r.Post("/requests/{id}/analyze", requestH.Analyze)
			r.Get("/ratelimit", limitH.Status)

			r.Get("/notifications", notifH.ListUnread)
			r.Get("/notifications/recent", notifH.ListRecent)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Put("/notifications/{id}", notifH.MarkAsRead)
			r.Delete("/notifications/{id}", notifH.Delete)
			r.Post("/notifications/test", notifH.SendTest)

			r.Post("/emails/batch", emailH.SendBatch)
		})
	})

	return r
}
