package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/models"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
)

type ProductReader interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
}

type ProductSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type ProductHandler struct {
	products ProductReader
	search   ProductSearcher
}

// NewProductHandler accepts a nil search; the search endpoint then answers 503.
func NewProductHandler(products ProductReader, search ProductSearcher) *ProductHandler {
	return &ProductHandler{products: products, search: search}
}

// GET /api/products?featured=
func (h *ProductHandler) List(c *gin.Context) {
	f := models.ProductFilter{Limit: limitParam(c)}
	if raw, ok := c.GetQuery("featured"); ok {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "featured must be true or false"})
			return
		}
		f.Featured = &featured
	}
	products, err := h.products.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products), "count": len(products)})
}

// GET /api/products/search?q=
func (h *ProductHandler) Search(c *gin.Context) {
	if h.search == nil {
		respondError(c, apperr.Unavailable("search is not enabled"))
		return
	}
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	products, err := h.search.Search(c.Request.Context(), q, limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products), "count": len(products), "query": q})
}

// GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id := c.Param("id")
	p, err := h.products.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if p == nil {
		respondError(c, apperr.NotFound(fmt.Sprintf("product %q not found", id)))
		return
	}
	c.JSON(http.StatusOK, p)
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 1 {
		return defaultProductLimit
	}
	if n > maxProductLimit {
		return maxProductLimit
	}
	return n
}

func nonNil(p []models.Product) []models.Product {
	if p == nil {
		return []models.Product{}
	}
	return p
}
