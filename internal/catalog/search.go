package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"storefront_back_end/internal/models"
)

const DefaultSearchIndex = "products"

// SearchIndex is the Elasticsearch full-text index over the catalog.
type SearchIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewSearchIndex(es *elasticsearch.Client, index string) *SearchIndex {
	if index == "" {
		index = DefaultSearchIndex
	}
	return &SearchIndex{es: es, index: index}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *SearchIndex) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	var buf bytes.Buffer
	q := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"name^2", "description"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  &buf,
		Size:  &limit,
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search %s: %s", res.Status(), body)
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]models.Product, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *SearchIndex) Index(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %s: %s", p.ID, res.Status())
	}
	return nil
}

// Sync copies up to limit products from src into the index and returns the ids it wrote.
// Individual failures are logged.
func (s *SearchIndex) Sync(ctx context.Context, src Source, limit int, log *zap.Logger) ([]string, error) {
	products, err := src.List(ctx, models.ProductFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if err := s.Index(ctx, p); err != nil {
			log.Warn("search index sync failed", zap.String("product_id", p.ID), zap.Error(err))
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}
