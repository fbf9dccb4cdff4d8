package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
)

func idKey(id string) string     { return "product:id:" + id }
func slugKey(slug string) string { return "product:slug:" + slug }

// ProductRepository is a read-through Redis cache in front of a
// repository.ProductRepository. Point lookups are cached, including misses;
// listings always hit the database. Redis failures degrade to the database.
type ProductRepository struct {
	next   repository.ProductRepository
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProductRepository wraps next with a Redis cache.
func NewProductRepository(next repository.ProductRepository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *ProductRepository {
	return &ProductRepository{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With().Str("cache", "product").Logger(),
	}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// GetByID returns the product from cache, loading and caching it on a miss.
func (c *ProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	data, err := c.redis.Get(ctx, idKey(id)).Bytes()

	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, nil
		}
		var product model.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.logger.Warn().Err(err).Str("product_id", id).Msg("failed to decode cached product, continuing with database")
			break
		}
		return &product, nil

	case errors.Is(err, redis.Nil):

	default:
		c.logger.Warn().Err(err).Msg("redis error, continuing with database")
	}

	product, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, idKey(id), product)
	return product, nil
}

// GetBySlug resolves the slug to an id through the cache, then delegates to GetByID.
func (c *ProductRepository) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	id, err := c.redis.Get(ctx, slugKey(slug)).Result()

	switch {
	case err == nil:
		if id == notFoundMarker {
			return nil, nil
		}
		return c.GetByID(ctx, id)

	case errors.Is(err, redis.Nil):

	default:
		c.logger.Warn().Err(err).Msg("redis error, continuing with database")
	}

	product, err := c.next.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if product == nil {
		c.set(ctx, slugKey(slug), notFoundMarker, notFoundTTL)
		return nil, nil
	}

	c.set(ctx, slugKey(slug), product.ID, c.ttl)
	c.store(ctx, idKey(product.ID), product)
	return product, nil
}

// List is not cached.
func (c *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	return c.next.List(ctx, filter)
}

// Create delegates and clears any cached miss for the new slug.
func (c *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	if err := c.next.Create(ctx, product); err != nil {
		return err
	}
	c.del(ctx, idKey(product.ID), slugKey(product.Slug))
	return nil
}

// Update delegates and invalidates the product and both its old and new slug.
func (c *ProductRepository) Update(ctx context.Context, product *model.Product) error {
	keys := []string{idKey(product.ID), slugKey(product.Slug)}
	if old, err := c.next.GetByID(ctx, product.ID); err == nil && old != nil && old.Slug != product.Slug {
		keys = append(keys, slugKey(old.Slug))
	}

	if err := c.next.Update(ctx, product); err != nil {
		return err
	}
	c.del(ctx, keys...)
	return nil
}

// SoftDelete delegates and invalidates the product.
func (c *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	var keys []string
	if old, err := c.next.GetByID(ctx, id); err == nil && old != nil {
		keys = append(keys, slugKey(old.Slug))
	}

	if err := c.next.SoftDelete(ctx, id); err != nil {
		return err
	}
	c.del(ctx, append(keys, idKey(id))...)
	return nil
}

// Upsert delegates. Callers invalidate after their transaction commits.
func (c *ProductRepository) Upsert(ctx context.Context, tx pgx.Tx, product *model.Product) (bool, error) {
	return c.next.Upsert(ctx, tx, product)
}

// BeginTx delegates.
func (c *ProductRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return c.next.BeginTx(ctx)
}

// Invalidate drops the cached entries of the given products. Slug mappings
// stay, since they resolve through the id entry.
func (c *ProductRepository) Invalidate(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = idKey(id)
	}
	c.del(ctx, keys...)
}

func (c *ProductRepository) store(ctx context.Context, key string, product *model.Product) {
	if product == nil {
		c.set(ctx, key, notFoundMarker, notFoundTTL)
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn().Err(err).Str("product_id", product.ID).Msg("failed to encode product for cache")
		return
	}
	c.set(ctx, key, data, c.ttl)
}

func (c *ProductRepository) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}

func (c *ProductRepository) del(ctx context.Context, keys ...string) {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate cache")
	}
}
