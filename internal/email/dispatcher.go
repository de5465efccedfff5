// Package email renders notification events into templated messages and
// hands them to an outbound transport.
package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agency-backoffice/internal/domain"
)

// Sender is an outbound transactional-email transport. It returns an error
// on any hard failure: bad credentials, rejected recipient, network error.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Dispatcher handles events from the email queue. Each event is sent once;
// there is no retry.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger.Named("email")}
}

func (d *Dispatcher) Handle(ctx context.Context, e domain.NotificationEvent) error {
	if e.RecipientEmail == "" {
		return fmt.Errorf("email event %s has no recipient: %w", e.Type, domain.ErrBadRequest)
	}
	msg, err := Render(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()
	err = d.sender.Send(ctx, e.RecipientEmail, msg.Subject, msg.HTML)
	sendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		sentTotal.WithLabelValues(msg.Template, "failed").Inc()
		return fmt.Errorf("send %s email to %s: %w: %w", msg.Template, e.RecipientEmail, domain.ErrEmailTransport, err)
	}
	sentTotal.WithLabelValues(msg.Template, "sent").Inc()
	d.logger.Info("email sent",
		zap.String("template", msg.Template),
		zap.String("to", e.RecipientEmail),
	)
	return nil
}

// BatchError describes one failed entry of a batch.
type BatchError struct {
	Index     int    `json:"index"`
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// BatchResult summarises DeliverBatch.
type BatchResult struct {
	Sent   int          `json:"sent"`
	Failed int          `json:"failed"`
	Errors []BatchError `json:"errors,omitempty"`
}

// DeliverBatch sends each event in order and counts outcomes. A failed entry
// never stops the batch. Remaining entries are counted as failed once ctx ends.
func (d *Dispatcher) DeliverBatch(ctx context.Context, events []domain.NotificationEvent) BatchResult {
	var res BatchResult
	for i, e := range events {
		err := ctx.Err()
		if err == nil {
			err = d.Handle(ctx, e)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BatchError{Index: i, Recipient: e.RecipientEmail, Error: err.Error()})
			d.logger.Warn("batch email failed", zap.Int("index", i), zap.String("to", e.RecipientEmail), zap.Error(err))
			continue
		}
		res.Sent++
	}
	return res
}
