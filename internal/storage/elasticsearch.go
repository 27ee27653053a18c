// internal/storage/elasticsearch.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

// productMapping indexes every string attribute as a keyword so regexp queries see whole values.
const productMapping = `{
  "mappings": {
    "properties": {
      "name":        {"type": "keyword"},
      "brand":       {"type": "keyword"},
      "category":    {"type": "keyword"},
      "description": {"type": "keyword", "ignore_above": 8191},
      "price":       {"type": "double"},
      "finalPrice":  {"type": "double"},
      "discount":    {"type": "double"},
      "stock":       {"type": "integer"},
      "rating":      {"type": "double"},
      "tags":        {"type": "keyword"}
    }
  }
}`

var elasticFields = map[string]bool{
	"name": true, "brand": true, "category": true, "description": true, "tags": true,
	"price": true, "finalPrice": true, "discount": true, "stock": true, "rating": true,
}

// ElasticCatalog compiles Structured Filters to bool queries over a products index.
type ElasticCatalog struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticCatalog(client *elasticsearch.Client, index string) *ElasticCatalog {
	return &ElasticCatalog{client: client, index: index}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *ElasticCatalog) Find(ctx context.Context, f filter.Filter, opts catalog.FindOptions) ([]models.Product, error) {
	e, err := filter.Parse(f)
	if err != nil {
		return nil, err
	}
	query, err := CompileElastic(e)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": query,
		"sort":  []interface{}{"_doc"},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch query encoding failed: %w", err)
	}

	req := esapi.SearchRequest{
		Index:          []string{c.index},
		Body:           bytes.NewReader(body),
		SourceIncludes: opts.Fields,
	}
	if opts.Limit > 0 {
		size := opts.Limit
		req.Size = &size
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s: %s", res.Status(), errorReason(res.Body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch decode failed: %w", err)
	}

	products := make([]models.Product, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		p := hit.Source
		p.ID = hit.ID
		products = append(products, p)
	}
	return products, nil
}

// EnsureIndex creates the index with keyword mappings unless it exists.
func (c *ElasticCatalog) EnsureIndex(ctx context.Context) error {
	res, err := c.client.Indices.Exists([]string{c.index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index check failed: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.client.Indices.Create(c.index,
		c.client.Indices.Create.WithContext(ctx),
		c.client.Indices.Create.WithBody(strings.NewReader(productMapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index create failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch index create error: %s: %s", res.Status(), errorReason(res.Body))
	}
	return nil
}

// Load bulk-indexes products and refreshes the index so they are searchable at once.
func (c *ElasticCatalog) Load(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range products {
		action := map[string]interface{}{"index": map[string]interface{}{}}
		if p.ID != "" {
			action["index"] = map[string]interface{}{"_id": p.ID}
		}
		doc := p
		doc.ID = ""
		if err := enc.Encode(action); err != nil {
			return 0, err
		}
		if err := enc.Encode(doc); err != nil {
			return 0, err
		}
	}

	res, err := c.client.Bulk(bytes.NewReader(buf.Bytes()),
		c.client.Bulk.WithContext(ctx),
		c.client.Bulk.WithIndex(c.index),
		c.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch bulk failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("elasticsearch bulk error: %s: %s", res.Status(), errorReason(res.Body))
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return 0, fmt.Errorf("elasticsearch bulk decode failed: %w", err)
	}

	indexed := 0
	for _, item := range bulk.Items {
		for _, r := range item {
			if r.Status >= 200 && r.Status < 300 {
				indexed++
			}
		}
	}
	if bulk.Errors {
		return indexed, fmt.Errorf("elasticsearch bulk indexed %d of %d products", indexed, len(products))
	}
	return indexed, nil
}

func (c *ElasticCatalog) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// CompileElastic renders e as an Elasticsearch query clause.
func CompileElastic(e filter.Expr) (map[string]interface{}, error) {
	switch t := e.(type) {
	case filter.And:
		if len(t) == 0 {
			return map[string]interface{}{"match_all": map[string]interface{}{}}, nil
		}
		clauses, err := compileAll(t)
		if err != nil {
			return nil, err
		}
		return boolQuery("filter", clauses), nil
	case filter.Or:
		clauses, err := compileAll(t)
		if err != nil {
			return nil, err
		}
		q := boolQuery("should", clauses)
		q["bool"].(map[string]interface{})["minimum_should_match"] = 1
		return q, nil
	case *filter.Cond:
		return compileCond(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMatch, e)
	}
}

func compileAll(exprs []filter.Expr) ([]interface{}, error) {
	out := make([]interface{}, 0, len(exprs))
	for _, x := range exprs {
		q, err := CompileElastic(x)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func compileCond(c *filter.Cond) (map[string]interface{}, error) {
	if !elasticFields[c.Field] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
	}

	switch c.Op {
	case filter.OpEq:
		if c.Value == nil {
			return boolQuery("must_not", []interface{}{exists(c.Field)}), nil
		}
		return term(c.Field, c.Value), nil
	case filter.OpNe:
		if c.Value == nil {
			return exists(c.Field), nil
		}
		return boolQuery("must_not", []interface{}{term(c.Field, c.Value)}), nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		return map[string]interface{}{
			"range": map[string]interface{}{
				c.Field: map[string]interface{}{strings.TrimPrefix(c.Op, "$"): c.Value},
			},
		}, nil
	case filter.OpIn:
		return terms(c.Field, c.Values), nil
	case filter.OpNin:
		return boolQuery("must_not", []interface{}{terms(c.Field, c.Values)}), nil
	case filter.OpRegex:
		return map[string]interface{}{
			"regexp": map[string]interface{}{
				c.Field: map[string]interface{}{
					"value":            luceneRegexp(c.Pattern),
					"flags":            "NONE",
					"case_insensitive": c.Fold,
				},
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMatch, c.Op)
	}
}

// luceneRegexp turns an unanchored search pattern into Lucene's whole-term syntax. Optional
// Lucene operators are disabled through the query flags; quotes still need escaping.
func luceneRegexp(pattern string) string {
	p := strings.ReplaceAll(pattern, `"`, `\"`)
	prefix, suffix := ".*", ".*"
	if strings.HasPrefix(p, "^") {
		p = p[1:]
		prefix = ""
	}
	if strings.HasSuffix(p, "$") && !strings.HasSuffix(p, `\$`) {
		p = p[:len(p)-1]
		suffix = ""
	}
	return prefix + p + suffix
}

func boolQuery(occur string, clauses []interface{}) map[string]interface{} {
	return map[string]interface{}{"bool": map[string]interface{}{occur: clauses}}
}

func term(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func terms(field string, values []interface{}) map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{field: values}}
}

func exists(field string) map[string]interface{} {
	return map[string]interface{}{"exists": map[string]interface{}{"field": field}}
}

func errorReason(body io.Reader) string {
	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error.Reason == "" {
		return "unknown error"
	}
	return payload.Error.Type + ": " + payload.Error.Reason
}
