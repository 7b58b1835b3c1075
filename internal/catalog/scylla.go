package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
)

const productColumns = "product_id, name, description, price, image, colors, category, company, featured, shipping, stock, created_at"

// ScyllaCatalog reads the products table of the catalog keyspace.
type ScyllaCatalog struct {
	session *gocql.Session
	fanout  int
}

var _ repository.ProductCatalog = (*ScyllaCatalog)(nil)

func NewScyllaCatalog(session *gocql.Session) *ScyllaCatalog {
	return &ScyllaCatalog{session: session, fanout: 8}
}

func (c *ScyllaCatalog) FindByID(ctx context.Context, id string) (*models.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		// not a catalog id, so it cannot exist
		return nil, nil
	}

	q := c.session.Query(`SELECT `+productColumns+` FROM products WHERE product_id = ?`, gocql.UUID(pid)).WithContext(ctx)
	p, err := scanProduct(q.Scan)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select product %s: %w", id, err)
	}
	return p, nil
}

// FindManyByIDs looks products up by partition key with bounded concurrency.
func (c *ScyllaCatalog) FindManyByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = uniqueIDs(ids)
	found := make([]*models.Product, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, id := range ids {
		g.Go(func() error {
			p, err := c.FindByID(gctx, id)
			if err != nil {
				return err
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, len(ids))
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *ScyllaCatalog) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	q := c.session.Query(`SELECT `+productColumns+` FROM products LIMIT ?`, f.Limit)
	if f.Featured != nil {
		q = c.session.Query(`SELECT `+productColumns+` FROM products WHERE featured = ? LIMIT ? ALLOW FILTERING`, *f.Featured, f.Limit)
	}
	iter := q.WithContext(ctx).Iter()
	scanner := iter.Scanner()

	var out []models.Product
	for scanner.Next() {
		p, err := scanProduct(scanner.Scan)
		if err != nil {
			_ = iter.Close()
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func scanProduct(scan func(dest ...interface{}) error) (*models.Product, error) {
	var (
		p   models.Product
		pid gocql.UUID
	)
	if err := scan(&pid, &p.Name, &p.Description, &p.Price, &p.Image, &p.Colors,
		&p.Category, &p.Company, &p.Featured, &p.Shipping, &p.Stock, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = pid.String()
	return &p, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
