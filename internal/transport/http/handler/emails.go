package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/email"
	"github.com/agency-backoffice/internal/pkg/validate"
)

// BatchDeliverer sends a list of transactional emails synchronously.
type BatchDeliverer interface {
	DeliverBatch(ctx context.Context, events []domain.NotificationEvent) email.BatchResult
}

// DefaultBatchTimeout caps one batch when NewEmailHandler gets no timeout. It
// stays below the server write timeout so the summary can still be written.
const DefaultBatchTimeout = 20 * time.Second

type EmailHandler struct {
	mailer  BatchDeliverer
	timeout time.Duration
}

func NewEmailHandler(m BatchDeliverer, timeout time.Duration) *EmailHandler {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &EmailHandler{mailer: m, timeout: timeout}
}

type batchEmail struct {
	To          string           `json:"to" validate:"required,email"`
	Type        domain.EventType `json:"type" validate:"required"`
	Title       string           `json:"title" validate:"max=200"`
	Body        string           `json:"body" validate:"max=4000"`
	ClientName  string           `json:"client_name" validate:"max=120"`
	ServiceName string           `json:"service_name" validate:"max=120"`
	Note        string           `json:"note" validate:"max=2000"`
}

type batchRequest struct {
	Emails []batchEmail `json:"emails" validate:"required,min=1,max=100,dive"`
}

// SendBatch delivers every entry and returns the sent/failed summary. A failed
// entry does not fail the request. Entries still pending when the batch
// timeout expires are reported as failed.
func (h *EmailHandler) SendBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		httpError(w, fmt.Errorf("%w: %v", domain.ErrBadRequest, err))
		return
	}
	events := make([]domain.NotificationEvent, 0, len(req.Emails))
	for i, e := range req.Emails {
		if !e.Type.Valid() {
			httpError(w, fmt.Errorf("emails[%d]: unknown type %q: %w", i, e.Type, domain.ErrBadRequest))
			return
		}
		events = append(events, domain.NotificationEvent{
			Type:           e.Type,
			Title:          e.Title,
			Body:           e.Body,
			RecipientEmail: e.To,
			SendEmail:      true,
			ClientName:     e.ClientName,
			ServiceName:    e.ServiceName,
			Note:           e.Note,
		})
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, h.mailer.DeliverBatch(ctx, events))
}
