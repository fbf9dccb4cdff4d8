package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// StockObserver is notified of every deduction attempt. Implemented by the metrics package.
type StockObserver interface {
	ObserveDeduction(outcome string)
}

// Deduction outcomes reported to a StockObserver.
const (
	DeductionOK           = "ok"
	DeductionInsufficient = "insufficient_stock"
	DeductionNotFound     = "not_found"
	DeductionError        = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveDeduction(string) {}

// stockLedger implements the StockLedger interface using conditional updates.
type stockLedger struct {
	observer StockObserver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStockLedger creates a new PostgreSQL-backed stock ledger. A nil observer is allowed.
func NewStockLedger(observer StockObserver, logger zerolog.Logger) StockLedger {
	if observer == nil {
		observer = nopObserver{}
	}
	return &stockLedger{
		observer: observer,
		logger:   logger.With().Str("repository", "stock_ledger").Logger(),
		now:      time.Now,
	}
}

const deductProductQuery = `
	UPDATE products
	SET stock = stock - $2, updated_at = NOW()
	WHERE id = $1 AND NOT is_deleted AND stock >= $2
	RETURNING ` + productColumns

const deductVariantQuery = `
	UPDATE product_variants
	SET stock = stock - $4
	WHERE product_id = $1 AND size = $2 AND color = $3 AND stock >= $4
`

// Deduct atomically decrements stock if enough is available.
func (l *stockLedger) Deduct(ctx context.Context, tx pgx.Tx, productID string, quantity int, variant *model.VariantSelector) (*model.Product, error) {
	if quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	var (
		product *model.Product
		err     error
	)
	if variant == nil || variant.IsZero() {
		variant = nil
		product, err = l.deductProduct(ctx, tx, productID, quantity)
	} else {
		product, err = l.deductVariant(ctx, tx, productID, quantity, *variant)
	}

	if err != nil {
		l.observer.ObserveDeduction(outcomeOf(err))
		return nil, err
	}

	if err := loadVariants(ctx, tx, []*model.Product{product}); err != nil {
		l.observer.ObserveDeduction(DeductionError)
		return nil, err
	}

	change := model.InventoryChange{ProductID: productID, Delta: -quantity, Reason: model.InventoryReasonOrder}
	if variant != nil {
		change.Size, change.Color = variant.Size, variant.Color
	}
	l.RecordChange(ctx, tx, change)

	l.observer.ObserveDeduction(DeductionOK)
	l.logger.Debug().
		Str("product_id", productID).
		Int("quantity", quantity).
		Int("remaining", product.Stock).
		Msg("stock deducted")

	return product, nil
}

func (l *stockLedger) deductProduct(ctx context.Context, tx pgx.Tx, productID string, quantity int) (*model.Product, error) {
	product, err := scanProduct(tx.QueryRow(ctx, deductProductQuery, productID, quantity))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		l.logger.Error().Err(err).Str("product_id", productID).Msg("failed to deduct stock")
		return nil, fmt.Errorf("failed to deduct stock: %w", err)
	}
	return nil, l.explainMiss(ctx, tx, productID, quantity, nil)
}

// deductVariant decrements the variant and the aggregate inside a savepoint so
// either both land or neither does.
func (l *stockLedger) deductVariant(ctx context.Context, tx pgx.Tx, productID string, quantity int, sel model.VariantSelector) (product *model.Product, err error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sp.Rollback(ctx)
		}
	}()

	tag, err := sp.Exec(ctx, deductVariantQuery, productID, sel.Size, sel.Color, quantity)
	if err != nil {
		l.logger.Error().Err(err).Str("product_id", productID).Msg("failed to deduct variant stock")
		return nil, fmt.Errorf("failed to deduct variant stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, l.explainMiss(ctx, sp, productID, quantity, &sel)
	}

	product, err = scanProduct(sp.QueryRow(ctx, deductProductQuery, productID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, l.explainMiss(ctx, sp, productID, quantity, &sel)
		}
		l.logger.Error().Err(err).Str("product_id", productID).Msg("failed to deduct stock")
		return nil, fmt.Errorf("failed to deduct stock: %w", err)
	}

	if err = sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return product, nil
}

// explainMiss decides why a conditional update matched nothing. A missing or
// deleted product, or a missing variant, is ErrProductNotFound; anything else
// is a shortfall.
func (l *stockLedger) explainMiss(ctx context.Context, tx pgx.Tx, productID string, quantity int, sel *model.VariantSelector) error {
	query := `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND NOT is_deleted)`
	args := []any{productID}
	if sel != nil {
		query = `
			SELECT EXISTS(
				SELECT 1 FROM products p
				JOIN product_variants v ON v.product_id = p.id
				WHERE p.id = $1 AND NOT p.is_deleted AND v.size = $2 AND v.color = $3
			)`
		args = append(args, sel.Size, sel.Color)
	}

	var exists bool
	if err := tx.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		l.logger.Error().Err(err).Str("product_id", productID).Msg("failed to probe product")
		return fmt.Errorf("failed to probe product: %w", err)
	}

	if !exists {
		l.logger.Debug().Str("product_id", productID).Msg("product not found for deduction")
		return model.ErrProductNotFound
	}

	stockErr := &model.StockError{ProductID: productID, Requested: quantity}
	if sel != nil {
		stockErr.Size, stockErr.Color = sel.Size, sel.Color
	}
	l.logger.Info().
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("insufficient stock")
	return stockErr
}

// Restock increments stock for the product or one of its variants.
func (l *stockLedger) Restock(ctx context.Context, tx pgx.Tx, productID string, quantity int, variant *model.VariantSelector, reason string) (product *model.Product, err error) {
	if quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sp.Rollback(ctx)
		}
	}()

	if variant != nil && !variant.IsZero() {
		tag, err := sp.Exec(ctx, `
			UPDATE product_variants SET stock = stock + $4
			WHERE product_id = $1 AND size = $2 AND color = $3
		`, productID, variant.Size, variant.Color, quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to restock variant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, model.ErrVariantNotFound
		}
	} else {
		variant = nil
	}

	product, err = scanProduct(sp.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+productColumns, productID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		l.logger.Error().Err(err).Str("product_id", productID).Msg("failed to restock")
		return nil, fmt.Errorf("failed to restock: %w", err)
	}

	if err = sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}

	if err = loadVariants(ctx, tx, []*model.Product{product}); err != nil {
		return nil, err
	}

	change := model.InventoryChange{ProductID: productID, Delta: quantity, Reason: reason}
	if variant != nil {
		change.Size, change.Color = variant.Size, variant.Color
	}
	l.RecordChange(ctx, tx, change)

	l.logger.Info().Str("product_id", productID).Int("quantity", quantity).Str("reason", reason).Msg("stock replenished")
	return product, nil
}

// RecordChange appends to the inventory log inside a savepoint so a failed
// insert leaves the enclosing transaction usable.
func (l *stockLedger) RecordChange(ctx context.Context, tx pgx.Tx, change model.InventoryChange) {
	if change.CreatedAt.IsZero() {
		change.CreatedAt = l.now()
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Str("product_id", change.ProductID).Msg("skipping inventory log entry")
		return
	}

	_, err = sp.Exec(ctx, `
		INSERT INTO inventory_log (id, product_id, size, color, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), change.ProductID, change.Size, change.Color, change.Delta, change.Reason, change.CreatedAt)
	if err == nil {
		err = sp.Commit(ctx)
	}
	if err != nil {
		_ = sp.Rollback(ctx)
		l.logger.Warn().Err(err).Str("product_id", change.ProductID).Msg("failed to record inventory change")
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrInsufficientStock):
		return DeductionInsufficient
	case errors.Is(err, model.ErrProductNotFound):
		return DeductionNotFound
	default:
		return DeductionError
	}
}
