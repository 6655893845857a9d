package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wick-sh/wick/internal/domain/subscription"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

const productCacheKeyPrefix = "wick:product:"

// CachedProductService is a Redis read-through cache in front of a product
// service. Cache failures degrade to the inner service; only not-found
// results from the inner service are returned as errors.
type CachedProductService struct {
	inner  subscription.ProductService
	client *redis.Client
	ttl    time.Duration
	logger logger.Interface
}

// NewCachedProductService wraps inner with a Redis cache.
func NewCachedProductService(inner subscription.ProductService, client *redis.Client,
	ttl time.Duration, logger logger.Interface) *CachedProductService {
	return &CachedProductService{inner: inner, client: client, ttl: ttl, logger: logger}
}

var _ subscription.ProductService = (*CachedProductService)(nil)

// GetProductByID returns the product with the given ID, preferring the cache.
func (s *CachedProductService) GetProductByID(ctx context.Context, id string) (*subscription.Product, error) {
	key := productCacheKeyPrefix + id

	cached, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var p subscription.Product
		if err := json.Unmarshal(cached, &p); err == nil {
			return &p, nil
		}
		// Corrupt entry, drop it and fall through.
		s.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warnw("product cache read failed", "product_id", id, "error", err)
	}

	p, err := s.inner.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warnw("product cache write failed", "product_id", id, "error", err)
		}
	}
	return p, nil
}

// Invalidate drops a product from the cache after a catalog change.
func (s *CachedProductService) Invalidate(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, productCacheKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to invalidate product %s: %w", id, err)
	}
	return nil
}
