package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/postgres/pgtest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, db *pgxpool.Pool, p catalog.Product) catalog.Product {
	t.Helper()
	if p.Images == nil {
		p.Images = []string{"https://img.example.com/x.jpg"}
	}
	if p.Description == "" {
		p.Description = "A piece of jewellery for tests."
	}
	if p.Category == "" {
		p.Category = catalog.CategoryRings
	}
	require.NoError(t, (&catalog.Repo{DB: db}).Create(context.Background(), &p))
	return p
}

func stockOf(t *testing.T, db *pgxpool.Pool, id string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func TestPostgresRepo(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()
	repo := &Repo{DB: db, LockTimeout: 2 * time.Second}
	proc := &Processor{Store: repo, Timeout: 10 * time.Second, Log: zerolog.Nop()}

	t.Run("place order", func(t *testing.T) {
		a := seed(t, db, catalog.Product{Name: "Hoops", Price: decimal.NewFromInt(100), Discount: decimal.NewFromInt(10), Stock: 5})
		b := seed(t, db, catalog.Product{Name: "Studs", Price: decimal.NewFromInt(50), Stock: 10})

		in := input(LineItem{a.ID, 2}, LineItem{b.ID, 1})
		in.UserID = "user-1"
		o, existed, err := proc.PlaceOrder(ctx, in)
		require.NoError(t, err)
		assert.False(t, existed)
		assert.Equal(t, "230.00", o.TotalPrice.StringFixed(2))
		assert.Equal(t, 3, stockOf(t, db, a.ID))
		assert.Equal(t, 9, stockOf(t, db, b.ID))

		got, err := repo.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(230).Equal(got.TotalPrice))
		require.Len(t, got.Items, 2)
		for _, it := range got.Items {
			require.NotNil(t, it.Product)
			assert.Equal(t, it.ProductID, it.Product.ID)
		}

		mine, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, o.ID, mine[0].ID)
	})

	t.Run("unrounded unit price is stored", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Pendant", Price: decimal.RequireFromString("99.99"), Discount: decimal.NewFromInt(33), Stock: 10})
		o, _, err := proc.PlaceOrder(ctx, input(LineItem{p.ID, 3}))
		require.NoError(t, err)
		assert.Equal(t, "200.98", o.TotalPrice.StringFixed(2))

		got, err := repo.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("66.9933").Equal(got.Items[0].Price), got.Items[0].Price.String())
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		a := seed(t, db, catalog.Product{Name: "Bangle", Price: decimal.NewFromInt(10), Stock: 5})
		b := seed(t, db, catalog.Product{Name: "Anklet", Price: decimal.NewFromInt(10), Stock: 1})

		_, _, err := proc.PlaceOrder(ctx, input(LineItem{a.ID, 2}, LineItem{b.ID, 2}))
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, 5, stockOf(t, db, a.ID))
		assert.Equal(t, 1, stockOf(t, db, b.ID))
	})

	t.Run("last unit under contention", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Tiara", Price: decimal.NewFromInt(500), Stock: 1})

		var wg sync.WaitGroup
		var mu sync.Mutex
		var ok, short int
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := proc.PlaceOrder(ctx, input(LineItem{p.ID, 1}))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrInsufficientStock):
					short++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, ok)
		assert.Equal(t, 9, short)
		assert.Zero(t, stockOf(t, db, p.ID))
	})

	t.Run("opposite cart order does not deadlock", func(t *testing.T) {
		a := seed(t, db, catalog.Product{Name: "Chain A", Price: decimal.NewFromInt(1), Stock: 100})
		b := seed(t, db, catalog.Product{Name: "Chain B", Price: decimal.NewFromInt(1), Stock: 100})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				items := []LineItem{{a.ID, 1}, {b.ID, 1}}
				if i%2 == 1 {
					items = []LineItem{{b.ID, 1}, {a.ID, 1}}
				}
				_, _, err := proc.PlaceOrder(ctx, input(items...))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 80, stockOf(t, db, a.ID))
		assert.Equal(t, 80, stockOf(t, db, b.ID))
	})

	t.Run("lock timeout is a concurrency error", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Locked", Price: decimal.NewFromInt(1), Stock: 5})

		holder, err := db.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = holder.Rollback(ctx) }()
		_, err = holder.Exec(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, p.ID)
		require.NoError(t, err)

		short := &Processor{Store: &Repo{DB: db, LockTimeout: 200 * time.Millisecond}, Log: zerolog.Nop()}
		_, _, err = short.PlaceOrder(ctx, input(LineItem{p.ID, 1}))
		assert.ErrorIs(t, err, ErrConcurrency)
		assert.Equal(t, 5, stockOf(t, db, p.ID))
	})

	t.Run("idempotency key", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Cuff", Price: decimal.NewFromInt(20), Stock: 5})
		in := input(LineItem{p.ID, 1})
		in.IdempotencyKey = "it-key-1"

		first, existed, err := proc.PlaceOrder(ctx, in)
		require.NoError(t, err)
		assert.False(t, existed)
		second, existed, err := proc.PlaceOrder(ctx, in)
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 4, stockOf(t, db, p.ID))

		// a duplicate insert inside the transaction is reported, and nothing is kept
		o := &Order{ID: "dup-order", IdempotencyKey: &in.IdempotencyKey, TotalPrice: decimal.NewFromInt(1),
			Status: StatusPlaced, PaymentMethod: PaymentCOD, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		err = repo.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.InsertOrder(ctx, o) })
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("status transitions", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Brooch", Price: decimal.NewFromInt(20), Stock: 5})
		o, _, err := proc.PlaceOrder(ctx, input(LineItem{p.ID, 1}))
		require.NoError(t, err)

		got, from, err := repo.UpdateStatus(ctx, o.ID, StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, StatusPlaced, from)
		assert.Equal(t, StatusShipped, got.Status)

		_, _, err = repo.UpdateStatus(ctx, o.ID, StatusPacked)
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = repo.UpdateStatus(ctx, "missing", StatusPacked)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("product in use cannot be deleted", func(t *testing.T) {
		p := seed(t, db, catalog.Product{Name: "Ring", Price: decimal.NewFromInt(20), Stock: 5})
		_, _, err := proc.PlaceOrder(ctx, input(LineItem{p.ID, 1}))
		require.NoError(t, err)

		var inUse *catalog.InUseError
		err = (&catalog.Repo{DB: db}).Delete(ctx, p.ID)
		require.ErrorAs(t, err, &inUse)
		assert.Equal(t, 1, inUse.OrderCount)
	})

	t.Run("dashboard", func(t *testing.T) {
		d, err := repo.Dashboard(ctx, time.Now())
		require.NoError(t, err)
		assert.Positive(t, d.TotalOrders)
		assert.True(t, d.TotalSales.IsPositive())
		assert.True(t, d.TodaySales.LessThanOrEqual(d.MonthSales))
		assert.True(t, d.MonthSales.LessThanOrEqual(d.TotalSales))
		assert.NotEmpty(t, d.BestSellingProducts)
		assert.LessOrEqual(t, len(d.LowStockProducts), 5)
	})
}
