package http

import (
	"time"

	"github.com/agency-backoffice/internal/application/notification"
	"github.com/agency-backoffice/internal/application/request"
	"github.com/agency-backoffice/internal/transport/http/handler"
	appmiddleware "github.com/agency-backoffice/internal/transport/http/middleware"
)

// Deps holds the services and collaborators the router exposes.
type Deps struct {
	Requests      request.Service
	Notifications notification.Service
	Limiter       handler.LimitStatusReader
	Emails        handler.BatchDeliverer
	// BatchTimeout caps POST /emails/batch. Zero uses handler.DefaultBatchTimeout.
	BatchTimeout time.Duration
	Hub           handler.SocketServer
	Verifier      appmiddleware.Verifier
	// LeadLimiter guards POST /leads per client IP. Nil disables it.
	LeadLimiter *appmiddleware.RateLimiter
}
