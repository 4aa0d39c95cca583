package httpx

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
	kafkax "github.com/ariefcatur/chulbuli-jewels.git/internal/kafka"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/reviews"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, auth.Claims{UserID: userID, Email: userID + "@example.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type published struct {
	Topic string
	Key   string
	Env   orders.Envelope
	Type  string
}

type fakePub struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePub) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var env orders.Envelope
	_ = json.Unmarshal(value, &env)
	p.msgs = append(p.msgs, published{
		Topic: topic,
		Key:   string(key),
		Env:   env,
		Type:  kafkax.Header(kafkago.Message{Headers: headers}, "x-event-type"),
	})
}

func (p *fakePub) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fakePlacer struct {
	mu    sync.Mutex
	calls []orders.PlaceOrderInput
	fn    func(in orders.PlaceOrderInput) (*orders.Order, bool, error)
}

func (f *fakePlacer) PlaceOrder(_ context.Context, in orders.PlaceOrderInput) (*orders.Order, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	return f.fn(in)
}

type fakeOrders struct {
	byID      map[string]*orders.Order
	byUser    map[string][]orders.Order
	updateErr error
	dashboard *orders.Dashboard
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, orders.OrderNotFoundError(id)
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	if l, ok := f.byUser[userID]; ok {
		return l, nil
	}
	return []orders.Order{}, nil
}

func (f *fakeOrders) ListAll(context.Context) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range f.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, to orders.Status) (*orders.Order, orders.Status, error) {
	if f.updateErr != nil {
		return nil, "", f.updateErr
	}
	if !to.Valid() {
		return nil, "", orders.ValidationError("Invalid status")
	}
	o, ok := f.byID[id]
	if !ok {
		return nil, "", orders.OrderNotFoundError(id)
	}
	from := o.Status
	if !orders.CanTransition(from, to) {
		return nil, from, orders.ValidationError("Cannot change status from " + string(from) + " to " + string(to))
	}
	o.Status = to
	return o, from, nil
}

func (f *fakeOrders) Dashboard(context.Context, time.Time) (*orders.Dashboard, error) {
	return f.dashboard, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	items    map[string]*catalog.Product
	gets     int
	inUse    map[string]int
	lastList catalog.Filter
}

func newFakeProducts(ps ...catalog.Product) *fakeProducts {
	f := &fakeProducts{items: map[string]*catalog.Product{}, inUse: map[string]int{}}
	for i := range ps {
		p := ps[i]
		f.items[p.ID] = &p
	}
	return f
}

func (f *fakeProducts) List(_ context.Context, flt catalog.Filter) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = flt
	out := []catalog.Product{}
	for _, p := range f.items {
		if flt.Category != "" && p.Category != flt.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) Get(_ context.Context, id string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	p, ok := f.items[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Create(_ context.Context, p *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = "new-product"
	}
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[p.ID]; !ok {
		return catalog.ErrProductNotFound
	}
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return catalog.ErrProductNotFound
	}
	if n := f.inUse[id]; n > 0 {
		return &catalog.InUseError{OrderCount: n}
	}
	delete(f.items, id)
	return nil
}

type fakeReviews struct {
	mu        sync.Mutex
	items     map[string]*reviews.Review
	products  map[string]bool
	purchases map[string]bool // userID + "/" + productID
	submitErr error
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{
		items:     map[string]*reviews.Review{},
		products:  map[string]bool{"p1": true},
		purchases: map[string]bool{},
	}
}

func (f *fakeReviews) Submit(_ context.Context, userID string, s reviews.Submission) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if !f.products[s.ProductID] {
		return nil, catalog.ErrProductNotFound
	}
	if !f.purchases[userID+"/"+s.ProductID] {
		return nil, reviews.ErrNotPurchased
	}
	for _, rv := range f.items {
		if rv.UserID == userID && rv.ProductID == s.ProductID {
			return nil, reviews.ErrAlreadyReviewed
		}
	}
	rv := &reviews.Review{ID: "r" + s.ProductID + userID, ProductID: s.ProductID, UserID: userID, Rating: s.Rating, Comment: s.Comment}
	f.items[rv.ID] = rv
	cp := *rv
	return &cp, nil
}

func (f *fakeReviews) ForProduct(_ context.Context, productID string) (*reviews.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.products[productID] {
		return nil, catalog.ErrProductNotFound
	}
	var list []reviews.Review
	for _, rv := range f.items {
		if rv.ProductID == productID && rv.Approved {
			list = append(list, *rv)
		}
	}
	s := reviews.Summarize(list)
	return &s, nil
}

func (f *fakeReviews) List(context.Context) ([]reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []reviews.Review{}
	for _, rv := range f.items {
		out = append(out, *rv)
	}
	return out, nil
}

func (f *fakeReviews) SetApproved(_ context.Context, id string, approved bool) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.items[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	rv.Approved = approved
	cp := *rv
	return &cp, nil
}

func (f *fakeReviews) Delete(_ context.Context, id string) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.items[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	delete(f.items, id)
	return rv, nil
}
