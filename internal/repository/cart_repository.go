package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartRepository implements the CartRepository interface using PostgreSQL.
// Line items are stored as an ordered JSONB document on the cart row.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

const cartColumns = `id, user_id, session_id, items, created_at, updated_at`

// ownerClause returns the WHERE condition and argument addressing the identity's cart.
func ownerClause(identity model.Identity) (string, string) {
	if identity.UserID != "" {
		return "user_id = $1", identity.UserID
	}
	return "session_id = $1", identity.SessionID
}

func scanCart(row pgx.Row) (*model.Cart, error) {
	var (
		c     model.Cart
		items []byte
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.SessionID, &items, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return &c, nil
}

// GetByIdentity retrieves the cart owned by the identity.
func (r *cartRepository) GetByIdentity(ctx context.Context, identity model.Identity) (*model.Cart, error) {
	where, arg := ownerClause(identity)
	return r.get(r.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where, arg), identity)
}

// GetForUpdate retrieves the cart owned by the identity and locks its row
// until the transaction ends.
func (r *cartRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, identity model.Identity) (*model.Cart, error) {
	where, arg := ownerClause(identity)
	return r.get(tx.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where+` FOR UPDATE`, arg), identity)
}

func (r *cartRepository) get(row pgx.Row, identity model.Identity) (*model.Cart, error) {
	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("identity", identity.String()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	return cart, nil
}

// GetOrCreateForUpdate returns the locked cart of the identity, creating an
// empty one if needed. Concurrent creators for the same identity converge on
// one row through the unique owner columns.
func (r *cartRepository) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, identity model.Identity, now time.Time) (*model.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	fresh := model.NewCart(identity, now)
	_, err := tx.Exec(ctx, `
		INSERT INTO carts (id, user_id, session_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, '[]'::jsonb, $4, $4)
		ON CONFLICT DO NOTHING
	`, fresh.ID, fresh.UserID, fresh.SessionID, now)
	if err != nil {
		r.logger.Error().Err(err).Str("identity", identity.String()).Msg("failed to create cart")
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart, err := r.GetForUpdate(ctx, tx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("failed to create cart: row for %s not visible", identity)
	}
	return cart, nil
}

// SaveItems persists the cart's line items.
func (r *cartRepository) SaveItems(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	items := cart.Items
	if items == nil {
		items = []model.CartItem{}
	}

	doc, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE carts SET items = $2, updated_at = $3 WHERE id = $1`, cart.ID, doc, cart.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to save cart")
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrCartNotFound
	}

	r.logger.Debug().
		Str("cart_id", cart.ID.String()).
		Int("lines", len(items)).
		Msg("cart saved")

	return nil
}

// Delete removes a cart row.
func (r *cartRepository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id); err != nil {
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to delete cart")
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
