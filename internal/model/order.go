package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusFailed
	case PaymentStatusPaid:
		return next == PaymentStatusRefunded
	}
	return false
}

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodUPI  PaymentMethod = "UPI"
)

// ShippingAddress is the address snapshot stored on an order.
type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=12"`
	Country    string `json:"country" validate:"required,max=56"`
}

// GuestContact identifies a customer who checks out without an account.
type GuestContact struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone,omitempty" validate:"max=20"`
}

// StatusEntry is one append-only audit log record of an order.
type StatusEntry struct {
	Status    OrderStatus `json:"status" db:"status"`
	Note      string      `json:"note" db:"note"`
	CreatedAt time.Time   `json:"timestamp" db:"created_at"`
}

// Order is the immutable record of a checkout. Only status fields and the
// audit log change after creation.
type Order struct {
	ID               uuid.UUID       `json:"-" db:"id"`
	OrderNumber      string          `json:"orderId" db:"order_number"`
	UserID           *string         `json:"userId,omitempty" db:"user_id"`
	Guest            *GuestContact   `json:"guest,omitempty"`
	Items            []OrderItem     `json:"items"`
	Subtotal         int64           `json:"subtotal" db:"subtotal"`
	ShippingFee      int64           `json:"shippingFee" db:"shipping_fee"`
	Total            int64           `json:"total" db:"total"`
	Currency         string          `json:"currency" db:"currency"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	PaymentReference *string         `json:"paymentReference,omitempty" db:"payment_reference"`
	PaidAt           *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	OrderStatus      OrderStatus     `json:"orderStatus" db:"order_status"`
	ShippingAddress  ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	StatusHistory    []StatusEntry   `json:"statusHistory"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a frozen copy of a purchased line.
type OrderItem struct {
	ID        uuid.UUID `json:"-" db:"id"`
	OrderID   uuid.UUID `json:"-" db:"order_id"`
	Position  int       `json:"-" db:"position"`
	ProductID string    `json:"productId" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	Size      string    `json:"size,omitempty" db:"size"`
	Color     string    `json:"color,omitempty" db:"color"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int64     `json:"price" db:"unit_price"`
}

// LineTotal returns quantity times unit price.
func (i OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// PaymentDetails is reported by the payment callback.
type PaymentDetails struct {
	Provider  string `json:"provider" validate:"required,max=50"`
	Reference string `json:"reference" validate:"required,max=120"`
}

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status OrderStatus
	UserID string
	Limit  int
	Offset int
}
