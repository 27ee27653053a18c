// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/models"
)

var (
	ErrUnknownField     = errors.New("UNKNOWN_FIELD")
	ErrUnsupportedMatch = errors.New("UNSUPPORTED_MATCH")
	ErrInvalidTableName = errors.New("INVALID_TABLE_NAME")
)

type columnKind int

const (
	textColumn columnKind = iota
	numericColumn
	arrayColumn
)

type column struct {
	name string
	kind columnKind
}

// productColumns maps catalog attributes onto the products table.
var productColumns = map[string]column{
	"id":          {"id", textColumn},
	"_id":         {"id", textColumn},
	"name":        {"name", textColumn},
	"brand":       {"brand", textColumn},
	"category":    {"category", textColumn},
	"description": {"description", textColumn},
	"price":       {"price", numericColumn},
	"finalPrice":  {"final_price", numericColumn},
	"discount":    {"discount", numericColumn},
	"stock":       {"stock", numericColumn},
	"rating":      {"rating", numericColumn},
	"tags":        {"tags", arrayColumn},
}

const selectColumns = "id, name, brand, category, price, final_price, discount, stock, rating, COALESCE(description, ''), tags"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresCatalog compiles Structured Filters to parameterised SQL against a products table.
type PostgresCatalog struct {
	db    *sql.DB
	table string
}

func NewPostgresCatalog(db *sql.DB, table string) (*PostgresCatalog, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return &PostgresCatalog{db: db, table: table}, nil
}

func (c *PostgresCatalog) Find(ctx context.Context, f filter.Filter, opts catalog.FindOptions) ([]models.Product, error) {
	e, err := filter.Parse(f)
	if err != nil {
		return nil, err
	}

	where, args, err := CompileSQL(e)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id", selectColumns, c.table, where)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var tags pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &p.FinalPrice,
			&p.Discount, &p.Stock, &p.Rating, &p.Description, &tags,
		); err != nil {
			return nil, fmt.Errorf("postgres scan failed: %w", err)
		}
		if len(tags) > 0 {
			p.Tags = []string(tags)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows failed: %w", err)
	}
	return products, nil
}

// EnsureSchema creates the products table when it does not exist.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	brand TEXT NOT NULL,
	category TEXT NOT NULL,
	price NUMERIC NOT NULL DEFAULT 0,
	final_price NUMERIC NOT NULL DEFAULT 0,
	discount NUMERIC NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	rating NUMERIC NOT NULL DEFAULT 0,
	description TEXT,
	tags TEXT[] NOT NULL DEFAULT '{}'
)`, c.table)
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres schema failed: %w", err)
	}
	return nil
}

// Load upserts products in one transaction. Products need an ID.
func (c *PostgresCatalog) Load(ctx context.Context, products []models.Product) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres begin failed: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, name, brand, category, price, final_price, discount, stock, rating, description, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, brand = EXCLUDED.brand, category = EXCLUDED.category,
price = EXCLUDED.price, final_price = EXCLUDED.final_price, discount = EXCLUDED.discount, stock = EXCLUDED.stock,
rating = EXCLUDED.rating, description = EXCLUDED.description, tags = EXCLUDED.tags`, c.table)

	for i, p := range products {
		if p.ID == "" {
			return 0, fmt.Errorf("product %d (%s) has no id", i, p.Name)
		}
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := tx.ExecContext(ctx, stmt,
			p.ID, p.Name, p.Brand, p.Category, p.Price, p.FinalPrice,
			p.Discount, p.Stock, p.Rating, p.Description, pq.Array(tags),
		); err != nil {
			return 0, fmt.Errorf("postgres insert %s failed: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres commit failed: %w", err)
	}
	return len(products), nil
}

func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// CompileSQL renders e as a WHERE clause with $n placeholders.
func CompileSQL(e filter.Expr) (string, []interface{}, error) {
	b := &sqlBuilder{}
	clause, err := b.expr(e)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

type sqlBuilder struct {
	args []interface{}
}

func (b *sqlBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) expr(e filter.Expr) (string, error) {
	switch t := e.(type) {
	case filter.And:
		return b.join(t, " AND ", "TRUE")
	case filter.Or:
		return b.join(t, " OR ", "FALSE")
	case *filter.Cond:
		return b.cond(t)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedMatch, e)
	}
}

func (b *sqlBuilder) join(terms []filter.Expr, sep, empty string) (string, error) {
	if len(terms) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		s, err := b.expr(term)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *sqlBuilder) cond(c *filter.Cond) (string, error) {
	col, ok := productColumns[c.Field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
	}
	if col.kind == arrayColumn {
		return b.arrayCond(col.name, c)
	}

	switch c.Op {
	case filter.OpEq:
		if c.Value == nil {
			return col.name + " IS NULL", nil
		}
		return fmt.Sprintf("%s = %s", col.name, b.bind(c.Value)), nil
	case filter.OpNe:
		if c.Value == nil {
			return col.name + " IS NOT NULL", nil
		}
		return fmt.Sprintf("%s IS DISTINCT FROM %s", col.name, b.bind(c.Value)), nil
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		return fmt.Sprintf("%s %s %s", col.name, comparison[c.Op], b.bind(c.Value)), nil
	case filter.OpIn, filter.OpNin:
		if len(c.Values) == 0 {
			if c.Op == filter.OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		list := b.list(c.Values)
		if c.Op == filter.OpIn {
			return fmt.Sprintf("%s IN (%s)", col.name, list), nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col.name, col.name, list), nil
	case filter.OpRegex:
		if col.kind != textColumn {
			return "", fmt.Errorf("%w: $regex on numeric field %s", ErrUnsupportedMatch, c.Field)
		}
		return fmt.Sprintf("%s %s %s", col.name, regexOperator(c), b.bind(c.Pattern)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMatch, c.Op)
	}
}

// arrayCond matches when any element satisfies the condition.
func (b *sqlBuilder) arrayCond(name string, c *filter.Cond) (string, error) {
	switch c.Op {
	case filter.OpEq:
		return fmt.Sprintf("%s = ANY(%s)", b.bind(c.Value), name), nil
	case filter.OpNe:
		return fmt.Sprintf("NOT (%s = ANY(%s))", b.bind(c.Value), name), nil
	case filter.OpIn:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) AS t WHERE t IN (%s))", name, b.list(c.Values)), nil
	case filter.OpNin:
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM unnest(%s) AS t WHERE t IN (%s))", name, b.list(c.Values)), nil
	case filter.OpRegex:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) AS t WHERE t %s %s)", name, regexOperator(c), b.bind(c.Pattern)), nil
	default:
		return "", fmt.Errorf("%w: %s on %s", ErrUnsupportedMatch, c.Op, c.Field)
	}
}

func (b *sqlBuilder) list(values []interface{}) string {
	if len(values) == 0 {
		return "NULL"
	}
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.bind(v)
	}
	return strings.Join(params, ", ")
}

var comparison = map[string]string{
	filter.OpGt:  ">",
	filter.OpGte: ">=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
}

func regexOperator(c *filter.Cond) string {
	if c.Fold {
		return "~*"
	}
	return "~"
}
