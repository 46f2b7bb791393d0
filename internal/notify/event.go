// Package notify carries order notifications from the services that commit
// orders to the notifier that records (and would send) the emails.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	TemplateOrderConfirmation = "ORDER_CONFIRMATION"
	TemplateShipping          = "SHIPPING_NOTIFICATION"
)

type Event struct {
	Template       string    `json:"template"`
	OrderID        string    `json:"order_id"`
	StoreID        string    `json:"store_id"`
	Recipient      string    `json:"recipient"`
	Status         string    `json:"status"`
	Total          string    `json:"total,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ShortID is the customer facing order reference.
func (e Event) ShortID() string {
	id := strings.ReplaceAll(e.OrderID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

func (e Event) Subject() string {
	switch e.Template {
	case TemplateOrderConfirmation:
		return fmt.Sprintf("Order Confirmation - #%s", e.ShortID())
	case TemplateShipping:
		return fmt.Sprintf("Order %s", e.Status)
	}
	return fmt.Sprintf("Order #%s update", e.ShortID())
}

// Dispatcher hands an event to the notification pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// LogDispatcher only logs events. Used when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, e Event) error {
	log.Printf("[notify] %s to=%s order=%s status=%s", e.Template, e.Recipient, e.OrderID, e.Status)
	return nil
}
