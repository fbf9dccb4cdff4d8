package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	ledger      repository.StockLedger
	cache       ProductInvalidator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProductService creates a new product service. cache may be nil.
func NewProductService(productRepo repository.ProductRepository, ledger repository.StockLedger, cache ProductInvalidator, logger zerolog.Logger) ProductService {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &productService{
		productRepo: productRepo,
		ledger:      ledger,
		cache:       cache,
		logger:      logger.With().Str("service", "product").Logger(),
		now:         time.Now,
	}
}

// List retrieves live products with pagination.
func (s *productService) List(ctx context.Context, category string, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	products, err := s.productRepo.List(ctx, repository.ProductFilter{Category: category, Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error().Err(err).
			Str("category", category).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// GetBySlug retrieves a single product by slug.
func (s *productService) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	if slug == "" {
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetBySlug(ctx, slug)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("failed to get product by slug")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

func (s *productService) Create(ctx context.Context, req *model.ProductRequest) (*model.Product, error) {
	now := s.now().UTC()
	product := &model.Product{
		ID:            uuid.NewString(),
		Slug:          req.Slug,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Stock:         req.Stock,
		Variants:      req.Variants,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update replaces descriptive fields and prices. Stock and variants are
// managed through Restock.
func (s *productService) Update(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Slug = req.Slug
	product.Name = req.Name
	product.Description = req.Description
	product.Category = req.Category
	product.Price = req.Price
	product.DiscountPrice = req.DiscountPrice
	product.UpdatedAt = s.now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	return s.productRepo.SoftDelete(ctx, id)
}

// Restock increments stock inside its own transaction.
func (s *productService) Restock(ctx context.Context, id string, req *model.RestockRequest) (product *model.Product, err error) {
	tx, err := s.productRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, s.logger)
		}
	}()

	var sel *model.VariantSelector
	if req.Size != "" || req.Color != "" {
		sel = &model.VariantSelector{Size: req.Size, Color: req.Color}
	}

	product, err = s.ledger.Restock(ctx, tx, id, req.Quantity, sel, model.InventoryReasonRestock)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx, id)
	return product, nil
}
