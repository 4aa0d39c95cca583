package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const returning = `RETURNING id, product_id, user_id, rating, comment, approved, created_at, updated_at`

func scanReview(row pgx.Row, extra ...any) (Review, error) {
	var r Review
	dest := append([]any{&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.Approved, &r.CreatedAt, &r.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return r, err
}

// Submit stores a pending review. The product must exist, the user must have an order
// containing it, and a user reviews a product at most once.
func (r *Repo) Submit(ctx context.Context, userID string, s Submission) (*Review, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	var exists, purchased bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1),
		       EXISTS (SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id
		               WHERE o.user_id = $2 AND oi.product_id = $1)`,
		s.ProductID, userID).Scan(&exists, &purchased)
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}
	if !exists {
		return nil, catalog.ErrProductNotFound
	}
	if !purchased {
		return nil, ErrNotPurchased
	}

	rv, err := scanReview(tx.QueryRow(ctx, `
		INSERT INTO reviews(id, product_id, user_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT ON CONSTRAINT reviews_product_user_key DO NOTHING
		`+returning,
		uuid.NewString(), s.ProductID, userID, s.Rating, s.Comment))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	var name *string
	if err := tx.QueryRow(ctx, `SELECT (SELECT name FROM users WHERE id = $1)`, userID).Scan(&name); err != nil {
		return nil, fmt.Errorf("load reviewer: %w", err)
	}
	if name != nil {
		rv.User = &Author{Name: *name}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &rv, nil
}

// ForProduct returns the approved reviews of a product, newest first.
func (r *Repo) ForProduct(ctx context.Context, productID string) (*Summary, error) {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return nil, catalog.ErrProductNotFound
	}

	rows, err := r.DB.Query(ctx, `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.comment, r.approved, r.created_at, r.updated_at, u.name
		FROM reviews r LEFT JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1 AND r.approved
		ORDER BY r.created_at DESC, r.id`, productID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var list []Review
	for rows.Next() {
		var name *string
		rv, err := scanReview(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if name != nil {
			rv.User = &Author{Name: *name}
		}
		list = append(list, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s := Summarize(list)
	return &s, nil
}

// List returns every review, pending ones included, newest first, for moderation.
func (r *Repo) List(ctx context.Context) ([]Review, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.comment, r.approved, r.created_at, r.updated_at,
		       u.name, u.email, p.name
		FROM reviews r
		JOIN products p ON p.id = r.product_id
		LEFT JOIN users u ON u.id = r.user_id
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var (
			userName, userEmail *string
			productName         string
		)
		rv, err := scanReview(rows, &userName, &userEmail, &productName)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if userName != nil {
			rv.User = &Author{Name: *userName, Email: deref(userEmail)}
		}
		rv.Product = &ProductRef{Name: productName}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) SetApproved(ctx context.Context, id string, approved bool) (*Review, error) {
	rv, err := scanReview(r.DB.QueryRow(ctx,
		`UPDATE reviews SET approved = $2, updated_at = now() WHERE id = $1 `+returning, id, approved))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return &rv, nil
}

// Delete removes a review and returns it as it was.
func (r *Repo) Delete(ctx context.Context, id string) (*Review, error) {
	rv, err := scanReview(r.DB.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 `+returning, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}
	return &rv, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
