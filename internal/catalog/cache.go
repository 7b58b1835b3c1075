package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

// Source is a catalog that can also page through products.
type Source interface {
	repository.ProductCatalog
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
}

// CachedCatalog is a Redis read-through cache in front of a Source.
// Redis failures degrade to reading the source directly.
type CachedCatalog struct {
	next Source
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedCatalog(next Source, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedCatalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, log: log}
}

func productKey(id string) string { return "product:" + id }

func (c *CachedCatalog) FindByID(ctx context.Context, id string) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	switch {
	case err == nil:
		var p models.Product
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	c.store(ctx, *p)
	return p, nil
}

func (c *CachedCatalog) FindManyByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	out := make([]models.Product, 0, len(ids))
	missing := ids
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("product cache mget failed", zap.Error(err))
	} else {
		missing = nil
		for i, v := range vals {
			s, ok := v.(string)
			var p models.Product
			if !ok || json.Unmarshal([]byte(s), &p) != nil {
				missing = append(missing, ids[i])
				continue
			}
			out = append(out, p)
		}
	}

	if len(missing) == 0 {
		return out, nil
	}
	loaded, err := c.next.FindManyByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	c.store(ctx, loaded...)
	return append(out, loaded...), nil
}

func (c *CachedCatalog) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	return c.next.List(ctx, f)
}

// Invalidate drops cached entries so the next read hits the source.
func (c *CachedCatalog) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *CachedCatalog) store(ctx context.Context, products ...models.Product) {
	if len(products) == 0 {
		return
	}
	pipe := c.rdb.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, productKey(p.ID), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("product cache write failed", zap.Error(err))
	}
}
