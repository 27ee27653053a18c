// internal/storage/redis.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

const (
	defaultKeyPrefix = "product:"
	scanBatch        = 100
)

// RedisCatalog stores each product as a JSON string under prefix+id and evaluates filters in process.
type RedisCatalog struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCatalog(client redis.Cmdable, prefix string) *RedisCatalog {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCatalog{client: client, prefix: prefix}
}

func (c *RedisCatalog) Find(ctx context.Context, f filter.Filter, opts catalog.FindOptions) ([]models.Product, error) {
	e, err := filter.Parse(f)
	if err != nil {
		return nil, err
	}

	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	var out []models.Product
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		var p models.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("redis decode %s failed: %w", keys[i], err)
		}
		if p.ID == "" {
			p.ID = keys[i][len(c.prefix):]
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

// keys returns every product key in a stable order.
func (c *RedisCatalog) keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		for _, k := range batch {
			seen[k] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Load writes products in one pipeline. Products without an ID are keyed by position.
func (c *RedisCatalog) Load(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	pipe := c.client.TxPipeline()
	for i, p := range products {
		if p.ID == "" {
			p.ID = strconv.Itoa(i + 1)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("redis encode %s failed: %w", p.ID, err)
		}
		pipe.Set(ctx, c.prefix+p.ID, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis load failed: %w", err)
	}
	return len(products), nil
}

func (c *RedisCatalog) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
