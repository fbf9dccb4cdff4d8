package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

const orderColumns = `
	id, order_number, user_id, guest_email, guest_name, guest_phone,
	subtotal, shipping_fee, total, currency, payment_method, payment_status,
	payment_reference, paid_at, order_status, shipping_address, created_at, updated_at`

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	var guestEmail, guestName, guestPhone *string
	if order.Guest != nil {
		guestEmail, guestName, guestPhone = &order.Guest.Email, &order.Guest.Name, &order.Guest.Phone
	}

	_, err = tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		guestEmail,
		guestName,
		guestPhone,
		order.Subtotal,
		order.ShippingFee,
		order.Total,
		order.Currency,
		order.PaymentMethod,
		order.PaymentStatus,
		order.PaymentReference,
		order.PaidAt,
		order.OrderStatus,
		address,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.OrderNumber).
			Bool("duplicate_number", isUniqueViolation(err, "orders_order_number_key")).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, position, product_id, name, size, color, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID, item.OrderID, item.Position, item.ProductID, item.Name,
			item.Size, item.Color, item.Quantity, item.UnitPrice,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// AppendStatus adds an entry to the order's audit log.
func (r *orderRepository) AppendStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.StatusEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4)
	`, orderID, entry.Status, entry.Note, entry.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_uuid", orderID.String()).Msg("failed to append order status")
		return fmt.Errorf("failed to append order status: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o                                 model.Order
		guestEmail, guestName, guestPhone *string
		address                           []byte
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&guestEmail,
		&guestName,
		&guestPhone,
		&o.Subtotal,
		&o.ShippingFee,
		&o.Total,
		&o.Currency,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.PaymentReference,
		&o.PaidAt,
		&o.OrderStatus,
		&address,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}

	if guestEmail != nil {
		o.Guest = &model.GuestContact{Email: *guestEmail}
		if guestName != nil {
			o.Guest.Name = *guestName
		}
		if guestPhone != nil {
			o.Guest.Phone = *guestPhone
		}
	}

	o.Items = []model.OrderItem{}
	o.StatusHistory = []model.StatusEntry{}
	return &o, nil
}

// GetByOrderNumber retrieves an order with its items and audit log.
func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", orderNumber).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderNumber).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if err := r.attachDetails(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// GetForUpdate retrieves the order row and locks it until the transaction ends.
func (r *orderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, orderNumber string) (*model.Order, error) {
	order, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 FOR UPDATE`, orderNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderNumber).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

// ListByUser retrieves a user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

// List retrieves orders for the admin console, newest first.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text = '' OR order_status = $1)
			AND ($2::text = '' OR user_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, string(filter.Status), filter.UserID, filter.Limit, filter.Offset)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		ptrs = append(ptrs, o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	rows.Close()

	if err := r.attachDetails(ctx, ptrs); err != nil {
		return nil, err
	}

	orders := make([]model.Order, len(ptrs))
	for i, o := range ptrs {
		orders[i] = *o
	}
	return orders, nil
}

// attachDetails loads items and audit entries for the orders in two queries.
func (r *orderRepository) attachDetails(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, position, product_id, name, size, color, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.Position, &item.ProductID, &item.Name,
			&item.Size, &item.Color, &item.Quantity, &item.UnitPrice)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		o := byID[item.OrderID]
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	rows.Close()

	history, err := r.pool.Query(ctx, `
		SELECT order_id, status, note, created_at
		FROM order_status_history
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order history")
		return fmt.Errorf("failed to query order history: %w", err)
	}
	defer history.Close()

	for history.Next() {
		var (
			orderID uuid.UUID
			entry   model.StatusEntry
		)
		if err := history.Scan(&orderID, &entry.Status, &entry.Note, &entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan order history: %w", err)
		}
		o := byID[orderID]
		o.StatusHistory = append(o.StatusHistory, entry)
	}

	if err := history.Err(); err != nil {
		return fmt.Errorf("error iterating order history: %w", err)
	}

	return nil
}

// UpdateStatus writes the order and payment status fields of an order.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, payment_status = $3, payment_reference = $4, paid_at = $5, updated_at = $6
		WHERE id = $1
	`, order.ID, order.OrderStatus, order.PaymentStatus, order.PaymentReference, order.PaidAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.OrderNumber).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}
