package model

import (
	"encoding/json"
	"time"
)

// Event topics written to the outbox.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxEvent is a domain event persisted in the same transaction as the
// change it describes and relayed to the broker later.
type OutboxEvent struct {
	ID        int64           `json:"id" db:"id"`
	EventID   string          `json:"eventId" db:"event_id"`
	Topic     string          `json:"topic" db:"topic"`
	Key       string          `json:"key" db:"key"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	SentAt    *time.Time      `json:"sentAt,omitempty" db:"sent_at"`
}

// OrderEventPayload is the body of order events.
type OrderEventPayload struct {
	OrderNumber   string        `json:"orderId"`
	UserID        *string       `json:"userId,omitempty"`
	OrderStatus   OrderStatus   `json:"orderStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	Note          string        `json:"note,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// NewOrderEventPayload builds the event body from an order.
func NewOrderEventPayload(o *Order, note string, at time.Time) OrderEventPayload {
	return OrderEventPayload{
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Currency:      o.Currency,
		Note:          note,
		OccurredAt:    at,
	}
}
