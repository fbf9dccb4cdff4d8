package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Checkout failure reasons reported to the CheckoutRecorder.
const (
	FailureEmptyCart         = "empty_cart"
	FailureInsufficientStock = "insufficient_stock"
	FailureProductNotFound   = "product_not_found"
	FailureAborted           = "transaction_aborted"
	FailureInvalid           = "invalid_request"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	cartRepo   repository.CartRepository
	ledger     repository.StockLedger
	outbox     repository.OutboxRepository
	checkout   config.CheckoutConfig
	recorder   CheckoutRecorder
	cache      ProductInvalidator
	logger     zerolog.Logger
	now        func() time.Time
	newOrderNo func(time.Time) string
}

// NewOrderService creates a new order service. recorder and cache may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	ledger repository.StockLedger,
	outbox repository.OutboxRepository,
	checkout config.CheckoutConfig,
	recorder CheckoutRecorder,
	cache ProductInvalidator,
	logger zerolog.Logger,
) OrderService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	prefix := checkout.OrderNumberPrefix
	return &orderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		ledger:    ledger,
		outbox:    outbox,
		checkout:  checkout,
		recorder:  recorder,
		cache:     cache,
		logger:    logger.With().Str("service", "order").Logger(),
		now:       time.Now,
		newOrderNo: func(at time.Time) string {
			return NewOrderNumber(prefix, at)
		},
	}
}

// NewOrderNumber builds a human-facing order number from the placement time
// and a random suffix, e.g. ORD-1718000000000-3F2A9C1B.
func NewOrderNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", prefix, at.UnixMilli(), suffix)
}

// ShippingFee returns the fee charged for a subtotal. Orders strictly above
// the threshold ship free.
func ShippingFee(cfg config.CheckoutConfig, subtotal int64) int64 {
	if subtotal > cfg.FreeShippingThreshold {
		return 0
	}
	return cfg.ShippingFee
}

// aborted marks a datastore failure that rolled the checkout back.
func aborted(err error) error {
	return fmt.Errorf("%w: %w", model.ErrTransactionAborted, err)
}

// CreateOrder converts the identity's cart into an order. Every line's stock
// is deducted in cart order inside one transaction; the first failure rolls
// back all earlier deductions and leaves the cart untouched. Line prices come
// from the catalogue at this moment, not from the cart.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (order *model.Order, err error) {
	defer func() {
		if err != nil {
			s.recorder.CheckoutFailed(failureReason(err))
		}
	}()

	if err := input.Identity.Validate(); err != nil {
		return nil, err
	}
	if input.Identity.IsGuest() && input.Contact == nil {
		return nil, model.ErrContactRequired
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, aborted(err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, s.logger)
		}
	}()

	cart, err := s.cartRepo.GetForUpdate(ctx, tx, input.Identity)
	if err != nil {
		return nil, aborted(err)
	}
	if cart == nil || cart.IsEmpty() {
		return nil, model.ErrEmptyCart
	}

	now := s.now().UTC()
	order = &model.Order{
		ID:              uuid.New(),
		OrderNumber:     s.newOrderNo(now),
		Currency:        s.checkout.Currency,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		OrderStatus:     model.OrderStatusPlaced,
		ShippingAddress: input.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.Identity.IsGuest() {
		order.Guest = input.Contact
	} else {
		userID := input.Identity.UserID
		order.UserID = &userID
	}

	items := make([]model.OrderItem, 0, len(cart.Items))
	productIDs := make([]string, 0, len(cart.Items))
	for i, line := range cart.Items {
		var sel *model.VariantSelector
		if line.Size != "" || line.Color != "" {
			sel = &model.VariantSelector{Size: line.Size, Color: line.Color}
		}

		product, err := s.ledger.Deduct(ctx, tx, line.ProductID, line.Quantity, sel)
		if err != nil {
			if errors.Is(err, model.ErrInsufficientStock) || errors.Is(err, model.ErrProductNotFound) {
				s.logger.Info().
					Err(err).
					Str("identity", input.Identity.String()).
					Str("product_id", line.ProductID).
					Msg("checkout rejected")
				return nil, err
			}
			return nil, aborted(err)
		}

		item := model.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Position:  i,
			ProductID: line.ProductID,
			Name:      product.Name,
			Size:      line.Size,
			Color:     line.Color,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice(line.Key().Selector()),
		}
		items = append(items, item)
		productIDs = append(productIDs, line.ProductID)
		order.Subtotal += item.LineTotal()
	}

	order.ShippingFee = ShippingFee(s.checkout, order.Subtotal)
	order.Total = order.Subtotal + order.ShippingFee
	order.Items = items

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, aborted(err)
	}
	if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		return nil, aborted(err)
	}

	entry := model.StatusEntry{Status: model.OrderStatusPlaced, Note: "Order initiated", CreatedAt: now}
	if err = s.orderRepo.AppendStatus(ctx, tx, order.ID, entry); err != nil {
		return nil, aborted(err)
	}
	order.StatusHistory = []model.StatusEntry{entry}

	if err = s.publish(ctx, tx, model.EventOrderPlaced, order, entry.Note, now); err != nil {
		return nil, aborted(err)
	}

	cart.Clear()
	cart.UpdatedAt = now
	if err = s.cartRepo.SaveItems(ctx, tx, cart); err != nil {
		return nil, aborted(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, aborted(err)
	}

	s.recorder.OrderPlaced()
	s.cache.Invalidate(ctx, productIDs...)

	s.logger.Info().
		Str("order_id", order.OrderNumber).
		Str("identity", input.Identity.String()).
		Int("item_count", len(items)).
		Int64("total", order.Total).
		Msg("order placed")

	return order, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyCart):
		return FailureEmptyCart
	case errors.Is(err, model.ErrInsufficientStock):
		return FailureInsufficientStock
	case errors.Is(err, model.ErrProductNotFound):
		return FailureProductNotFound
	case errors.Is(err, model.ErrTransactionAborted):
		return FailureAborted
	default:
		return FailureInvalid
	}
}

// publish writes an order event to the outbox inside tx.
func (s *orderService) publish(ctx context.Context, tx pgx.Tx, topic string, order *model.Order, note string, at time.Time) error {
	payload, err := json.Marshal(model.NewOrderEventPayload(order, note, at))
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return s.outbox.Insert(ctx, tx, &model.OutboxEvent{
		EventID:   uuid.NewString(),
		Topic:     topic,
		Key:       order.OrderNumber,
		Payload:   payload,
		CreatedAt: at,
	})
}

// ListForUser returns the user's orders, newest first.
func (s *orderService) ListForUser(ctx context.Context, userID string) ([]model.Order, error) {
	if userID == "" {
		return nil, model.ErrInvalidIdentity
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetByOrderNumber retrieves an order with its items and history.
func (s *orderService) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderNumber).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// transition locks the order, lets fn mutate it and persists the result.
// fn returns the event topic and audit note, or an empty topic when nothing
// changed. The order is returned as stored after the transaction ends.
func (s *orderService) transition(ctx context.Context, orderNumber string, fn func(order *model.Order, now time.Time) (string, string, error)) (order *model.Order, err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, s.logger)
		}
	}()

	order, err = s.orderRepo.GetForUpdate(ctx, tx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	now := s.now().UTC()
	statusBefore := order.OrderStatus
	topic, note, err := fn(order, now)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		// Nothing to change; release the lock.
		if err = tx.Rollback(ctx); err != nil {
			return nil, fmt.Errorf("failed to release order: %w", err)
		}
		return s.GetByOrderNumber(ctx, orderNumber)
	}

	order.UpdatedAt = now
	if err = s.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
		return nil, err
	}

	if order.OrderStatus != statusBefore {
		entry := model.StatusEntry{Status: order.OrderStatus, Note: note, CreatedAt: now}
		if err = s.orderRepo.AppendStatus(ctx, tx, order.ID, entry); err != nil {
			return nil, err
		}
	}

	if err = s.publish(ctx, tx, topic, order, note, now); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.OrderNumber).
		Str("order_status", string(order.OrderStatus)).
		Str("payment_status", string(order.PaymentStatus)).
		Str("event", topic).
		Msg("order updated")
	return s.GetByOrderNumber(ctx, orderNumber)
}

// MarkPaid records a successful payment. A repeat callback for an already
// paid order is a no-op.
func (s *orderService) MarkPaid(ctx context.Context, orderNumber string, details model.PaymentDetails) (*model.Order, error) {
	return s.transition(ctx, orderNumber, func(order *model.Order, now time.Time) (string, string, error) {
		if order.PaymentStatus == model.PaymentStatusPaid {
			return "", "", nil
		}
		if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusPaid) || order.OrderStatus == model.OrderStatusCancelled {
			return "", "", model.ErrInvalidStatusTransition
		}

		ref := details.Reference
		order.PaymentStatus = model.PaymentStatusPaid
		order.PaymentReference = &ref
		order.PaidAt = &now

		note := fmt.Sprintf("Payment received via %s", details.Provider)
		if order.OrderStatus == model.OrderStatusPlaced {
			order.OrderStatus = model.OrderStatusConfirmed
		}
		return model.EventOrderPaid, note, nil
	})
}

// MarkPaymentFailed records a declined payment. The order stays PLACED so the
// shopper can retry out of band.
func (s *orderService) MarkPaymentFailed(ctx context.Context, orderNumber, reason string) (*model.Order, error) {
	return s.transition(ctx, orderNumber, func(order *model.Order, _ time.Time) (string, string, error) {
		if order.PaymentStatus == model.PaymentStatusFailed {
			return "", "", nil
		}
		if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusFailed) {
			return "", "", model.ErrInvalidStatusTransition
		}
		order.PaymentStatus = model.PaymentStatusFailed
		return model.EventOrderPaymentFailed, reason, nil
	})
}

// UpdateStatus moves the order along its lifecycle. Cancelling does not
// return stock.
func (s *orderService) UpdateStatus(ctx context.Context, orderNumber string, status model.OrderStatus, note string) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatusTransition
	}

	return s.transition(ctx, orderNumber, func(order *model.Order, _ time.Time) (string, string, error) {
		if !order.OrderStatus.CanTransitionTo(status) {
			return "", "", model.ErrInvalidStatusTransition
		}
		order.OrderStatus = status
		if note == "" {
			note = "Order " + strings.ToLower(string(status))
		}
		return model.EventOrderStatusChanged, note, nil
	})
}

// ListAll lists orders for the admin console, newest first.
func (s *orderService) ListAll(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return []model.Order{}, nil
	}

	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
