package service

import (
	"context"
	"errors"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ProductService defines operations for catalogue management.
type ProductService interface {
	// List retrieves live products with pagination, optionally by category.
	List(ctx context.Context, category string, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetBySlug retrieves a single product by its URL slug.
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)

	Create(ctx context.Context, req *model.ProductRequest) (*model.Product, error)
	Update(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error)
	Delete(ctx context.Context, id string) error

	// Restock increments stock and logs the change.
	Restock(ctx context.Context, id string, req *model.RestockRequest) (*model.Product, error)
}

// CartService defines operations on the shopper's cart.
type CartService interface {
	// GetOrCreate returns the identity's cart, creating an empty one if needed.
	GetOrCreate(ctx context.Context, identity model.Identity) (*model.Cart, error)

	// Get returns the cart priced against the current catalogue. A missing
	// cart is shown as empty.
	Get(ctx context.Context, identity model.Identity) (*model.CartResponse, error)

	AddItem(ctx context.Context, identity model.Identity, req *model.AddItemRequest) (*model.Cart, error)
	UpdateItemQuantity(ctx context.Context, identity model.Identity, req *model.UpdateItemRequest) (*model.Cart, error)

	// RemoveItem drops a line. Returns nil when the identity has no cart.
	RemoveItem(ctx context.Context, identity model.Identity, key model.LineKey) (*model.Cart, error)

	// Merge folds the guest cart into the user's cart and deletes it.
	Merge(ctx context.Context, sessionID, userID string) (*model.Cart, error)
}

// CreateOrderInput carries everything checkout needs besides the cart.
type CreateOrderInput struct {
	Identity        model.Identity
	ShippingAddress model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	Contact         *model.GuestContact
}

// OrderService defines operations for order placement and lifecycle.
type OrderService interface {
	// CreateOrder converts the identity's cart into an order atomically.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error)

	ListForUser(ctx context.Context, userID string) ([]model.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	MarkPaid(ctx context.Context, orderNumber string, details model.PaymentDetails) (*model.Order, error)
	MarkPaymentFailed(ctx context.Context, orderNumber, reason string) (*model.Order, error)

	// UpdateStatus moves an order along its lifecycle.
	UpdateStatus(ctx context.Context, orderNumber string, status model.OrderStatus, note string) (*model.Order, error)
	ListAll(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
}

// AuthService defines account operations.
type AuthService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// CheckoutRecorder receives checkout outcomes.
type CheckoutRecorder interface {
	OrderPlaced()
	CheckoutFailed(reason string)
}

// ProductInvalidator drops cached product entries.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

type nopRecorder struct{}

func (nopRecorder) OrderPlaced()          {}
func (nopRecorder) CheckoutFailed(string) {}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...string) {}

// rollback aborts tx after a failed operation. A transaction already closed
// by a failed Commit is not worth a log line.
func rollback(ctx context.Context, tx pgx.Tx, logger zerolog.Logger) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}
