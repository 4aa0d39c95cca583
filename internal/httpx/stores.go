package httpx

import (
	"context"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/reviews"
)

// ProductStore is implemented by *catalog.Repo.
type ProductStore interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Get(ctx context.Context, id string) (*catalog.Product, error)
	Create(ctx context.Context, p *catalog.Product) error
	Update(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, id string) error
}

// OrderPlacer is implemented by *orders.Processor.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput) (*orders.Order, bool, error)
}

// OrderStore is implemented by *orders.Repo.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListAll(ctx context.Context) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, to orders.Status) (*orders.Order, orders.Status, error)
	Dashboard(ctx context.Context, now time.Time) (*orders.Dashboard, error)
}

// ReviewStore is implemented by *reviews.Repo.
type ReviewStore interface {
	Submit(ctx context.Context, userID string, s reviews.Submission) (*reviews.Review, error)
	ForProduct(ctx context.Context, productID string) (*reviews.Summary, error)
	List(ctx context.Context) ([]reviews.Review, error)
	SetApproved(ctx context.Context, id string, approved bool) (*reviews.Review, error)
	Delete(ctx context.Context, id string) (*reviews.Review, error)
}
