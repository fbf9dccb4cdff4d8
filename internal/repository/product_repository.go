package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `id, slug, name, description, category, price, discount_price, stock, is_deleted, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.DiscountPrice,
		&p.Stock,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// querier is the subset of pgxpool.Pool and pgx.Tx used for reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadVariants fills in the variants of the given products with a single query.
func loadVariants(ctx context.Context, q querier, products []*model.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	byID := make(map[string]*model.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, size, color, stock, price_delta
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, size, color
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var v model.Variant
		if err := rows.Scan(&productID, &v.Size, &v.Color, &v.Stock, &v.PriceDelta); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating variants: %w", err)
	}

	return nil
}

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *productRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// List retrieves live products ordered by name with pagination support.
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE NOT is_deleted AND ($3::text = '' OR category = $3)
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset, filter.Category)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", filter.Limit).
			Int("offset", filter.Offset).
			Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		ptrs = append(ptrs, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	rows.Close()

	if err := loadVariants(ctx, r.pool, ptrs); err != nil {
		r.logger.Error().Err(err).Msg("failed to load product variants")
		return nil, err
	}

	products := make([]model.Product, len(ptrs))
	for i, p := range ptrs {
		products[i] = *p
	}
	return products, nil
}

// GetByID retrieves a single live product with its variants.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	return r.getOne(ctx, "id", id)
}

// GetBySlug retrieves a single live product by its URL key.
func (r *productRepository) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return r.getOne(ctx, "slug", slug)
}

func (r *productRepository) getOne(ctx context.Context, column, value string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = $1 AND NOT is_deleted`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str(column, value).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str(column, value).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	if err := loadVariants(ctx, r.pool, []*model.Product{p}); err != nil {
		r.logger.Error().Err(err).Str("product_id", p.ID).Msg("failed to load product variants")
		return nil, err
	}

	return p, nil
}

// Create inserts a product and its variants.
func (r *productRepository) Create(ctx context.Context, product *model.Product) (err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, r.logger)

	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, slug, name, description, category, price, discount_price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		product.ID, product.Slug, product.Name, product.Description, product.Category,
		product.Price, product.DiscountPrice, product.Stock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "products_slug_key") {
			return model.ErrSlugTaken
		}
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to create product")
		return fmt.Errorf("failed to create product: %w", err)
	}

	if err := insertVariants(ctx, tx, product); err != nil {
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to create product variants")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}

	r.logger.Info().Str("product_id", product.ID).Str("slug", product.Slug).Msg("product created")
	return nil
}

// Update overwrites the descriptive fields and prices of a live product.
// Stock is left alone; it changes only through the stock ledger.
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET slug = $2, name = $3, description = $4, category = $5,
			price = $6, discount_price = $7, updated_at = $8
		WHERE id = $1 AND NOT is_deleted
	`,
		product.ID, product.Slug, product.Name, product.Description, product.Category,
		product.Price, product.DiscountPrice, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "products_slug_key") {
			return model.ErrSlugTaken
		}
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to update product")
		return fmt.Errorf("failed to update product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}

	return nil
}

// SoftDelete flags a product as deleted.
func (r *productRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to delete product")
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}

	r.logger.Info().Str("product_id", id).Msg("product soft-deleted")
	return nil
}

// Upsert inserts or replaces a product keyed by slug within the provided transaction.
func (r *productRepository) Upsert(ctx context.Context, tx pgx.Tx, product *model.Product) (bool, error) {
	var created bool
	err := tx.QueryRow(ctx, `
		INSERT INTO products (id, slug, name, description, category, price, discount_price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			discount_price = EXCLUDED.discount_price,
			stock = EXCLUDED.stock,
			is_deleted = FALSE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)
	`,
		product.ID, product.Slug, product.Name, product.Description, product.Category,
		product.Price, product.DiscountPrice, product.Stock, product.UpdatedAt,
	).Scan(&product.ID, &created)
	if err != nil {
		r.logger.Error().Err(err).Str("slug", product.Slug).Msg("failed to upsert product")
		return false, fmt.Errorf("failed to upsert product: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
		return false, fmt.Errorf("failed to replace variants: %w", err)
	}

	if err := insertVariants(ctx, tx, product); err != nil {
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to upsert product variants")
		return false, err
	}

	return created, nil
}

func insertVariants(ctx context.Context, tx pgx.Tx, product *model.Product) error {
	if len(product.Variants) == 0 {
		return nil
	}

	query := `
		INSERT INTO product_variants (product_id, size, color, stock, price_delta)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, v := range product.Variants {
		batch.Queue(query, product.ID, v.Size, v.Color, v.Stock, v.PriceDelta)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, v := range product.Variants {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert variant %s/%s: %w", v.Size, v.Color, err)
		}
	}

	return nil
}
