package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     OrderStatus
		to       OrderStatus
		expected bool
	}{
		{OrderStatusPlaced, OrderStatusConfirmed, true},
		{OrderStatusPlaced, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusPlaced, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPlaced, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPlaced.IsTerminal())
	assert.False(t, OrderStatus("LOST").Valid())
}

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusPaid))
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusFailed))
	assert.True(t, PaymentStatusPaid.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusPaid.CanTransitionTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusPaid))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusPaid))
}

func TestProduct_Pricing(t *testing.T) {
	discount := int64(90)
	p := &Product{
		ID:    "P1",
		Price: 120,
		Stock: 5,
		Variants: []Variant{
			{Size: "L", Color: "red", Stock: 2, PriceDelta: 10},
		},
	}

	assert.Equal(t, int64(120), p.EffectivePrice())
	assert.Equal(t, int64(130), p.UnitPrice(VariantSelector{Size: "L", Color: "red"}))

	p.DiscountPrice = &discount
	assert.Equal(t, int64(90), p.EffectivePrice())
	assert.Equal(t, int64(100), p.UnitPrice(VariantSelector{Size: "L", Color: "red"}))
}

func TestProduct_Available(t *testing.T) {
	p := &Product{
		ID:       "P1",
		Stock:    3,
		Variants: []Variant{{Size: "L", Color: "red", Stock: 7}},
	}

	n, err := p.Available(VariantSelector{})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = p.Available(VariantSelector{Size: "L", Color: "red"})
	assert.NoError(t, err)
	assert.Equal(t, 3, n, "variant stock is capped by aggregate stock")

	_, err = p.Available(VariantSelector{Size: "XL"})
	assert.Equal(t, ErrVariantNotFound, err)
}

func TestStockError_Unwraps(t *testing.T) {
	err := error(&StockError{ProductID: "P1", Size: "M", Requested: 2})

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Contains(t, err.Error(), "P1")
	assert.Contains(t, err.Error(), `size "M"`)
}
