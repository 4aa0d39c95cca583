package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// InUseError refuses deletion of a product referenced by order items.
type InUseError struct {
	OrderCount int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("Cannot delete product. It exists in %d order(s). Consider marking it as out of stock instead.", e.OrderCount)
}

const productColumns = `id, name, description, price, discount, category, stock, images, material, featured, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

// ScanProduct reads productColumns, in order, from a row.
func ScanProduct(row pgx.Row) (Product, error) {
	var p Product
	var category string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Discount, &category,
		&p.Stock, &p.Images, &p.Material, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	p.Category = Category(category)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, err
}

// SelectColumns returns productColumns qualified with a table alias.
func SelectColumns(alias string) string {
	cols := strings.Split(productColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.FeaturedOnly {
		where = append(where, "featured")
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch f.Sort {
	case SortPriceAsc:
		q += ` ORDER BY price ASC, id`
	case SortPriceDesc:
		q += ` ORDER BY price DESC, id`
	default:
		q += ` ORDER BY created_at DESC, id`
	}

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := ScanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (*Product, error) {
	p, err := ScanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Create assigns an id when p.ID is empty and fills the timestamps.
func (r *Repo) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, discount, category, stock, images, material, featured)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.Discount, string(p.Category), p.Stock, p.Images, p.Material, p.Featured,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update overwrites every editable field, stock included. The CHECK constraint keeps stock >= 0.
func (r *Repo) Update(ctx context.Context, p *Product) error {
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, discount=$5, category=$6,
		                    stock=$7, images=$8, material=$9, featured=$10, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.Discount, string(p.Category), p.Stock, p.Images, p.Material, p.Featured,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes a product that no order references.
func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// lock first so no checkout can reference the row between count and delete
	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE product_id=$1`, id).Scan(&n); err != nil {
		return fmt.Errorf("count order items: %w", err)
	}
	if n > 0 {
		return &InUseError{OrderCount: n}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return tx.Commit(ctx)
}

// LowStock lists up to limit products with stock <= threshold, lowest first.
func (r *Repo) LowStock(ctx context.Context, threshold, limit int) ([]Summary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price, stock, images FROM products
		WHERE stock <= $1 ORDER BY stock ASC, id LIMIT $2`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Stock, &s.Images); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
