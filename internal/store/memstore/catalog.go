package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

type Catalog struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

var _ repository.ProductCatalog = (*Catalog)(nil)

func NewCatalog(products ...models.Product) *Catalog {
	c := &Catalog{products: make(map[string]models.Product)}
	c.Put(products...)
	return c
}

// Put inserts or replaces products.
func (c *Catalog) Put(products ...models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		p.Colors = append([]string(nil), p.Colors...)
		c.products[p.ID] = p
	}
}

func (c *Catalog) FindByID(_ context.Context, id string) (*models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *Catalog) FindManyByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Search does a case-insensitive substring match on name and description.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	all, _ := c.List(ctx, models.ProductFilter{})
	q := strings.ToLower(query)

	var out []models.Product
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
