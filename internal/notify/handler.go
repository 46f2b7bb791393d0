package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errBadEvent = errors.New("malformed event")

// Mailer delivers a rendered email. The default one only logs.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[email] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// Handler turns queue deliveries into sent emails plus an email log row.
type Handler struct {
	mailer Mailer
	logs   EmailLogRepo
}

func NewHandler(m Mailer, logs EmailLogRepo) *Handler {
	return &Handler{mailer: m, logs: logs}
}

func (h *Handler) Handle(ctx context.Context, d amqp.Delivery) {
	err := h.Process(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errBadEvent):
		log.Printf("[notify] dropping message %s: %v", d.MessageId, err)
		_ = d.Reject(false)
	default:
		// one more attempt for transient failures
		log.Printf("[notify] message %s failed (redelivered=%t): %v", d.MessageId, d.Redelivered, err)
		_ = d.Nack(false, !d.Redelivered)
	}
}

func (h *Handler) Process(ctx context.Context, body []byte) error {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("%w: %v", errBadEvent, err)
	}
	if e.Recipient == "" || e.OrderID == "" || e.Template == "" {
		return fmt.Errorf("%w: recipient, order_id and template are required", errBadEvent)
	}

	subject := e.Subject()
	if err := h.mailer.Send(ctx, e.Recipient, subject, render(e)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return h.logs.Record(ctx, &EmailLog{
		Recipient: e.Recipient,
		Subject:   subject,
		Template:  e.Template,
		Status:    StatusSent,
	})
}

func render(e Event) string {
	switch e.Template {
	case TemplateOrderConfirmation:
		return fmt.Sprintf("Thanks for your order #%s. Total: %s.", e.ShortID(), e.Total)
	case TemplateShipping:
		tracking := e.TrackingNumber
		if tracking == "" {
			tracking = "N/A"
		}
		return fmt.Sprintf("Your order #%s has been %s. Tracking Number: %s", e.ShortID(), strings.ToLower(e.Status), tracking)
	}
	return fmt.Sprintf("Your order #%s is now %s.", e.ShortID(), e.Status)
}
