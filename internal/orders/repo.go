package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the checkout classifies.
const (
	pgUniqueViolation     = "23505"
	pgLockNotAvailable    = "55P03"
	pgDeadlockDetected    = "40P01"
	pgSerializationFailed = "40001"

	idempotencyConstraint = "orders_idempotency_key_key"
)

// Repo is the Postgres-backed order store. It implements Store for the Processor and the
// read/admin queries used by the HTTP layer.
type Repo struct {
	DB *pgxpool.Pool
	// LockTimeout caps how long one statement waits for a row lock inside a checkout.
	LockTimeout time.Duration
}

const orderColumns = `o.id, o.user_id, o.total_price, o.customer_name, o.customer_email, o.customer_phone,
	o.address_line1, o.address_line2, o.city, o.state, o.pincode, o.status, o.payment_method,
	o.created_at, o.updated_at`

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if r.LockTimeout > 0 {
		// SET cannot take bind parameters; the value is an integer we format ourselves
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, productID string) (catalog.Product, bool, error) {
	p, err := catalog.ScanProduct(t.tx.QueryRow(ctx,
		`SELECT `+catalog.SelectColumns("p")+` FROM products p WHERE p.id = $1 FOR UPDATE`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, false, nil
	}
	if err != nil {
		if transientLockError(err) {
			return catalog.Product{}, false, ConcurrencyError(productID, productID, err)
		}
		return catalog.Product{}, false, fmt.Errorf("lock product %s: %w", productID, err)
	}
	return p, true, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		if transientLockError(err) {
			return false, nil
		}
		return false, fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// InsertOrder sends the order row and its items as one batch.
func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO orders(id, user_id, idempotency_key, total_price, customer_name, customer_email, customer_phone,
		                   address_line1, address_line2, city, state, pincode, status, payment_method, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.UserID, o.IdempotencyKey, o.TotalPrice, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.AddressLine1, o.AddressLine2, o.City, o.State, o.Pincode, string(o.Status), o.PaymentMethod, o.CreatedAt, o.UpdatedAt)
	for _, it := range o.Items {
		b.Queue(`INSERT INTO order_items(id, order_id, product_id, quantity, price) VALUES ($1,$2,$3,$4,$5)`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.Price)
	}

	br := t.tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == idempotencyConstraint {
				return fmt.Errorf("insert order: %w", ErrDuplicateRequest)
			}
			return fmt.Errorf("insert order: %w", err)
		}
	}
	return br.Close()
}

func transientLockError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailed:
		return true
	}
	return false
}

func (r *Repo) FindByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE idempotency_key=$1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by idempotency key: %w", err)
	}
	return r.GetOrder(ctx, id)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	list, err := r.queryOrders(ctx, `SELECT `+orderColumns+`, NULL::text, NULL::text FROM orders o WHERE o.id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, OrderNotFoundError(id)
	}
	return &list[0], nil
}

// ListByUser returns a user's orders newest first, items and product details included.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+`, NULL::text, NULL::text
		FROM orders o WHERE o.user_id=$1
		ORDER BY o.created_at DESC, o.id`, userID)
}

// ListAll is the admin view: every order newest first, with the owning user when known.
func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+`, u.name, u.email
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id`)
}

// UpdateStatus moves an order forward. It returns the updated order and the previous status.
func (r *Repo) UpdateStatus(ctx context.Context, id string, to Status) (*Order, Status, error) {
	if !to.Valid() {
		return nil, "", ValidationError("Invalid status")
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", OrderNotFoundError(id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("lock order: %w", err)
	}
	if !CanTransition(Status(from), to) {
		return nil, Status(from), ValidationError(fmt.Sprintf("Cannot change status from %s to %s", from, to))
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(to)); err != nil {
		return nil, "", fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}

	o, err := r.GetOrder(ctx, id)
	return o, Status(from), err
}

// Dashboard aggregates sales figures. Day and month boundaries follow now's location.
func (r *Repo) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	d := &Dashboard{BestSellingProducts: []BestSeller{}}
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price), 0),
		       COUNT(*),
		       COALESCE(SUM(total_price) FILTER (WHERE created_at >= $1), 0),
		       COALESCE(SUM(total_price) FILTER (WHERE created_at >= $2), 0)
		FROM orders`, today, month).Scan(&d.TotalSales, &d.TotalOrders, &d.TodaySales, &d.MonthSales)
	if err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.price, p.stock, p.images, SUM(oi.quantity) AS sold
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		GROUP BY p.id
		ORDER BY sold DESC, p.id
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("best sellers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b BestSeller
		if err := rows.Scan(&b.ID, &b.Name, &b.Price, &b.Stock, &b.Images, &b.TotalSold); err != nil {
			return nil, err
		}
		d.BestSellingProducts = append(d.BestSellingProducts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	low, err := (&catalog.Repo{DB: r.DB}).LowStock(ctx, LowStockThreshold, 5)
	if err != nil {
		return nil, err
	}
	d.LowStockProducts = low
	return d, nil
}

const LowStockThreshold = 10

// queryOrders expects orderColumns followed by customer name and email, then loads items.
func (r *Repo) queryOrders(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	index := map[string]int{}
	var ids []string
	for rows.Next() {
		var (
			o            Order
			status       string
			cName, cMail *string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
			&o.AddressLine1, &o.AddressLine2, &o.City, &o.State, &o.Pincode, &status, &o.PaymentMethod,
			&o.CreatedAt, &o.UpdatedAt, &cName, &cMail); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = Status(status)
		o.Items = []OrderItem{}
		if cName != nil || cMail != nil {
			o.Customer = &Customer{Name: deref(cName), Email: deref(cMail)}
		}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, `+catalog.SelectColumns("p")+`
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.product_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			it       OrderItem
			p        catalog.Product
			category string
		)
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Discount, &category, &p.Stock, &p.Images,
			&p.Material, &p.Featured, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		p.Category = catalog.Category(category)
		it.Product = &p
		i := index[it.OrderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
