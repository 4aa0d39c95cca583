package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store runs checkout work inside one database transaction.
type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise, including on ctx cancellation.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// FindByIdempotencyKey returns nil, nil when no order carries the key.
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
}

// Tx is the set of row operations the checkout needs while the transaction is open.
type Tx interface {
	// LockProduct takes an exclusive row lock held until the transaction ends.
	// found is false when the product does not exist.
	LockProduct(ctx context.Context, productID string) (p catalog.Product, found bool, err error)
	// DecrementStock subtracts qty only while stock >= qty still holds and reports whether it did.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	// InsertOrder writes the order and all its items. A taken idempotency key yields ErrDuplicateRequest.
	InsertOrder(ctx context.Context, o *Order) error
}

// Processor turns a validated cart into a persisted order without overselling.
type Processor struct {
	Store Store
	// Timeout bounds the whole transaction, lock waits included. Zero means no extra bound.
	Timeout time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
}

var tracer = otel.Tracer("github.com/ariefcatur/chulbuli-jewels.git/internal/orders")

// PlaceOrder locks every product in the cart, re-prices it from the database, decrements
// stock and inserts the order, all in one transaction. existed is true when the
// idempotency key matched an earlier order of the same caller, which is returned unchanged;
// a key matching someone else's order fails with KeyReusedError.
func (p *Processor) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order *Order, existed bool, err error) {
	lines, err := canonicalLines(in.Items)
	if err != nil {
		return nil, false, err
	}

	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(lines)), attribute.Bool("order.guest", in.UserID == ""))

	if in.IdempotencyKey != "" {
		prev, err := p.Store.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, false, p.fail(span, in, err)
		}
		if prev != nil {
			if !prev.PlacedBy(in) {
				return nil, false, p.fail(span, in, KeyReusedError())
			}
			span.SetAttributes(attribute.Bool("order.replayed", true))
			return prev, true, nil
		}
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	o := p.newOrder(in)
	err = p.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		total := decimal.Zero
		items := make([]OrderItem, 0, len(lines))

		for _, ln := range lines {
			prod, found, err := tx.LockProduct(ctx, ln.ProductID)
			if err != nil {
				return err
			}
			if !found {
				return ProductNotFoundError(ln.ProductID)
			}
			if prod.Stock < ln.Quantity {
				return InsufficientStockError(prod.ID, prod.Name, prod.Stock, ln.Quantity)
			}

			unit := prod.EffectivePrice()
			total = total.Add(lineTotal(unit, ln.Quantity))

			ok, err := tx.DecrementStock(ctx, prod.ID, ln.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ConcurrencyError(prod.ID, prod.Name, nil)
			}
			prod.Stock -= ln.Quantity

			snapshot := prod
			items = append(items, OrderItem{
				ID:        uuid.NewString(),
				OrderID:   o.ID,
				ProductID: prod.ID,
				Quantity:  ln.Quantity,
				Price:     unit,
				Product:   &snapshot,
			})
		}

		o.Items = items
		o.TotalPrice = RoundTotal(total)
		return tx.InsertOrder(ctx, o)
	})

	if errors.Is(err, ErrDuplicateRequest) && in.IdempotencyKey != "" {
		// a concurrent request with the same key won; everything above was rolled back
		prev, ferr := p.Store.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if ferr == nil && prev != nil {
			if !prev.PlacedBy(in) {
				return nil, false, p.fail(span, in, KeyReusedError())
			}
			return prev, true, nil
		}
		if ferr != nil {
			err = fmt.Errorf("%w (lookup after duplicate: %v)", err, ferr)
		}
	}
	if err != nil {
		return nil, false, p.fail(span, in, err)
	}

	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.total", o.TotalPrice.StringFixed(2)))
	p.Log.Info().
		Str("order_id", o.ID).
		Str("total", o.TotalPrice.StringFixed(2)).
		Int("lines", len(o.Items)).
		Bool("guest", o.UserID == nil).
		Msg("order placed")
	return o, false, nil
}

func (p *Processor) fail(span trace.Span, in PlaceOrderInput, err error) error {
	oe := AsError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, oe.Message)

	ev := p.Log.Warn()
	if errors.Is(oe, ErrInternal) {
		ev = p.Log.Error()
	}
	ev.Err(err).
		Str("kind", oe.Kind.Error()).
		Str("product_id", oe.ProductID).
		Str("user_id", in.UserID).
		Msg("order rejected")
	return oe
}

func (p *Processor) newOrder(in PlaceOrderInput) *Order {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ts := now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		AddressLine1:  in.AddressLine1,
		City:          in.City,
		State:         in.State,
		Pincode:       in.Pincode,
		Status:        StatusPlaced,
		PaymentMethod: PaymentCOD,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if in.UserID != "" {
		uid := in.UserID
		o.UserID = &uid
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		o.IdempotencyKey = &key
	}
	if in.AddressLine2 != "" {
		a2 := in.AddressLine2
		o.AddressLine2 = &a2
	}
	return o
}

// canonicalLines merges repeated products and sorts by product id, so every checkout takes
// row locks in the same global order and two overlapping carts cannot deadlock. The
// quantity bound applies to the merged line as well as to each submitted one.
func canonicalLines(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ValidationError("Cart is empty")
	}
	if len(items) > MaxCartLines {
		return nil, ValidationError(fmt.Sprintf("Cart cannot contain more than %d items", MaxCartLines))
	}
	qty := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, ValidationError("productId is required")
		}
		if it.Quantity < 1 || it.Quantity > MaxLineQuantity {
			return nil, ValidationError(fmt.Sprintf("quantity for product %s must be between 1 and %d", it.ProductID, MaxLineQuantity))
		}
		qty[it.ProductID] += it.Quantity
		if qty[it.ProductID] > MaxLineQuantity {
			return nil, ValidationError(fmt.Sprintf("total quantity for product %s cannot exceed %d", it.ProductID, MaxLineQuantity))
		}
	}
	out := make([]LineItem, 0, len(qty))
	for id, q := range qty {
		out = append(out, LineItem{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
