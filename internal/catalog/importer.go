package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Invalidator drops cached product entries after an import.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// ImportResult summarises an import run.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Importer upserts catalogue products by slug.
type Importer struct {
	products repository.ProductRepository
	ledger   repository.StockLedger
	cache    Invalidator
	logger   zerolog.Logger
	now      func() time.Time
}

// NewImporter creates an importer. cache may be nil.
func NewImporter(products repository.ProductRepository, ledger repository.StockLedger, cache Invalidator, logger zerolog.Logger) *Importer {
	return &Importer{
		products: products,
		ledger:   ledger,
		cache:    cache,
		logger:   logger.With().Str("component", "catalog-importer").Logger(),
		now:      time.Now,
	}
}

// Import writes all products in one transaction. Existing products keep
// their ID; their fields, stock and variants are replaced.
func (i *Importer) Import(ctx context.Context, products []model.Product) (result ImportResult, err error) {
	tx, err := i.products.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				i.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	now := i.now().UTC()
	ids := make([]string, 0, len(products))
	for idx := range products {
		p := &products[idx]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt, p.UpdatedAt = now, now

		created, err := i.products.Upsert(ctx, tx, p)
		if err != nil {
			return ImportResult{}, fmt.Errorf("failed to import %s: %w", p.Slug, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		ids = append(ids, p.ID)

		i.ledger.RecordChange(ctx, tx, model.InventoryChange{
			ProductID: p.ID,
			Delta:     p.Stock,
			Reason:    model.InventoryReasonImport,
			CreatedAt: now,
		})
	}

	if err = tx.Commit(ctx); err != nil {
		return ImportResult{}, fmt.Errorf("failed to commit import: %w", err)
	}

	if i.cache != nil && len(ids) > 0 {
		i.cache.Invalidate(ctx, ids...)
	}

	i.logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Msg("catalogue imported")
	return result, nil
}
