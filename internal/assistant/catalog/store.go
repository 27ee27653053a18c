// Package catalog exposes the product catalog to the completion service as a single declared tool.
package catalog

import (
	"context"
	"errors"

	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

// MaxRows caps every catalog query, whatever limit the caller asks for.
const MaxRows = 10

var ErrStoreQueryFailed = errors.New("STORE_QUERY_FAILED")

// FindOptions bounds and projects a query.
type FindOptions struct {
	Limit  int
	Fields []string
}

// Store is a read-only catalog backend. Implementations must honour Limit and may ignore Fields.
type Store interface {
	Find(ctx context.Context, f filter.Filter, opts FindOptions) ([]models.Product, error)
}

// Pinger is implemented by stores that can check their backend connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
