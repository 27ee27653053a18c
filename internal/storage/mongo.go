// internal/storage/mongo.go
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

// mongoCollection is the subset of *mongo.Collection the catalog uses.
type mongoCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	InsertMany(ctx context.Context, documents interface{}, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

type mongoProduct struct {
	ID             interface{} `bson:"_id,omitempty"`
	models.Product `bson:",inline"`
}

// MongoCatalog runs Structured Filters natively; they already use the MongoDB query language.
type MongoCatalog struct {
	coll mongoCollection
	ping func(ctx context.Context) error
}

func NewMongoCatalog(coll *mongo.Collection, ping func(ctx context.Context) error) *MongoCatalog {
	return &MongoCatalog{coll: coll, ping: ping}
}

func (c *MongoCatalog) Find(ctx context.Context, f filter.Filter, opts catalog.FindOptions) ([]models.Product, error) {
	// Only the operators every backend understands reach the server.
	if _, err := filter.Parse(f); err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if len(opts.Fields) > 0 {
		projection := bson.M{}
		for _, field := range opts.Fields {
			projection[field] = 1
		}
		findOpts.SetProjection(projection)
	}

	query := bson.M{}
	for k, v := range f {
		query[k] = v
	}

	cursor, err := c.coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo find failed: %w", err)
	}

	var docs []mongoProduct
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode failed: %w", err)
	}

	products := make([]models.Product, len(docs))
	for i, d := range docs {
		p := d.Product
		p.ID = mongoID(d.ID)
		products[i] = p
	}
	return products, nil
}

func (c *MongoCatalog) Load(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(products))
	for i, p := range products {
		doc := mongoProduct{Product: p}
		if p.ID != "" {
			doc.ID = p.ID
		}
		docs[i] = doc
	}

	res, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("mongo insert failed: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (c *MongoCatalog) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	return c.ping(ctx)
}

func mongoID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
