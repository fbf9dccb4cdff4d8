package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductFilter narrows catalogue listings.
type ProductFilter struct {
	Category string
	Limit    int
	Offset   int
}

// ProductRepository defines the interface for product data access operations.
// Lookups return (nil, nil) when no live product matches.
type ProductRepository interface {
	// List retrieves live products ordered by name with pagination support.
	List(ctx context.Context, filter ProductFilter) ([]model.Product, error)

	// GetByID retrieves a single live product with its variants.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetBySlug retrieves a single live product by its URL key.
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)

	// Create inserts a product and its variants. Returns model.ErrSlugTaken on a duplicate slug.
	Create(ctx context.Context, product *model.Product) error

	// Update overwrites the descriptive fields and prices of a live product.
	Update(ctx context.Context, product *model.Product) error

	// SoftDelete flags a product as deleted. Returns model.ErrProductNotFound if absent.
	SoftDelete(ctx context.Context, id string) error

	// Upsert inserts or replaces a product keyed by slug within the provided transaction.
	// Stock is overwritten with the incoming values. It reports whether a row was created.
	Upsert(ctx context.Context, tx pgx.Tx, product *model.Product) (bool, error)

	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// StockLedger is the single writer of available-to-sell quantities. Every
// method runs inside the caller's transaction so that an abort undoes it.
type StockLedger interface {
	// Deduct atomically decrements stock by quantity if enough is available and
	// returns the product as it stands after the update. It fails with
	// model.ErrProductNotFound or a *model.StockError and never partially applies.
	Deduct(ctx context.Context, tx pgx.Tx, productID string, quantity int, variant *model.VariantSelector) (*model.Product, error)

	// Restock increments stock for the product or one of its variants.
	Restock(ctx context.Context, tx pgx.Tx, productID string, quantity int, variant *model.VariantSelector, reason string) (*model.Product, error)

	// RecordChange appends to the inventory log. Failures are logged and swallowed.
	RecordChange(ctx context.Context, tx pgx.Tx, change model.InventoryChange)
}

// CartRepository defines the interface for cart data access operations.
// Lookups return (nil, nil) when the identity has no cart.
type CartRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetByIdentity retrieves the cart owned by the identity.
	GetByIdentity(ctx context.Context, identity model.Identity) (*model.Cart, error)

	// GetForUpdate retrieves the cart owned by the identity and locks its row.
	GetForUpdate(ctx context.Context, tx pgx.Tx, identity model.Identity) (*model.Cart, error)

	// GetOrCreateForUpdate returns the locked cart of the identity, creating an empty one if needed.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, identity model.Identity, now time.Time) (*model.Cart, error)

	// SaveItems persists the cart's line items.
	SaveItems(ctx context.Context, tx pgx.Tx, cart *model.Cart) error

	// Delete removes a cart row.
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// OrderRepository defines the interface for order data access operations.
// Lookups return (nil, nil) when no order matches.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// AppendStatus adds an entry to the order's audit log.
	AppendStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.StatusEntry) error

	// GetByOrderNumber retrieves an order with its items and audit log.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// GetForUpdate retrieves the order row (without items) and locks it.
	GetForUpdate(ctx context.Context, tx pgx.Tx, orderNumber string) (*model.Order, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// List retrieves orders for the admin console, newest first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// UpdateStatus writes the order and payment status fields of an order.
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *model.Order) error
}

// UserRepository defines the interface for user account data access.
type UserRepository interface {
	// Create inserts a user. Returns model.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, user *model.User) error

	// GetByEmail retrieves a user by email, or (nil, nil) if none.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetByID retrieves a user by ID, or (nil, nil) if none.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// OutboxRepository stores domain events alongside the change that produced them.
type OutboxRepository interface {
	// Insert writes an event within the provided transaction.
	Insert(ctx context.Context, tx pgx.Tx, event *model.OutboxEvent) error

	// FetchPending returns up to limit unsent events in insertion order.
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)

	// MarkSent flags events as delivered.
	MarkSent(ctx context.Context, ids []int64) error
}
