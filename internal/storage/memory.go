// Package storage implements the catalog store over MongoDB, PostgreSQL, Elasticsearch, Redis
// and process memory.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

// MemoryCatalog keeps products in insertion order and evaluates filters in process.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products []models.Product
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{}
	_, _ = c.Load(context.Background(), products)
	return c
}

func (c *MemoryCatalog) Find(ctx context.Context, f filter.Filter, opts catalog.FindOptions) ([]models.Product, error) {
	e, err := filter.Parse(f)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Product
	for _, p := range c.products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter.Eval(e, p) {
			continue
		}
		out = append(out, p)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Load appends products, assigning sequential IDs to those without one.
func (c *MemoryCatalog) Load(ctx context.Context, products []models.Product) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range products {
		if p.ID == "" {
			p.ID = strconv.Itoa(len(c.products) + 1)
		}
		c.products = append(c.products, p)
	}
	return len(products), nil
}

func (c *MemoryCatalog) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryCatalog) Close(ctx context.Context) error {
	return nil
}

// ReadProducts loads a JSON array of products from path.
func ReadProducts(path string) ([]models.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse product file %s: %w", path, err)
	}
	return products, nil
}
