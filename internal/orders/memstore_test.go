package orders

import (
	"context"
	"sync"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/catalog"
)

// memStore is a transactional in-memory Store. Each product row has its own mutex held from
// LockProduct until the transaction ends; writes stay private to the transaction until commit.
type memStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	orders   map[string]*Order
	byKey    map[string]string
	rowLocks map[string]*sync.Mutex

	txCalls int
	// steal removes stock right after the row lock is taken, simulating a store whose
	// locks do not actually exclude other writers.
	steal map[string]int
	// hideKeys makes FindByIdempotencyKey miss this many times, to reproduce the race
	// where two requests with one key both pass the pre-check.
	hideKeys  int
	insertErr error
}

func newMemStore(products ...catalog.Product) *memStore {
	s := &memStore{
		products: map[string]catalog.Product{},
		orders:   map[string]*Order{},
		byKey:    map[string]string{},
		rowLocks: map[string]*sync.Mutex{},
		steal:    map[string]int{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) rowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	s.txCalls++
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: s, decrements: map[string]int{}}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *memStore) FindByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideKeys > 0 {
		s.hideKeys--
		return nil, nil
	}
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	return s.orders[id], nil
}

type memTx struct {
	s          *memStore
	held       []*sync.Mutex
	decrements map[string]int
	order      *Order
}

func (t *memTx) LockProduct(ctx context.Context, id string) (catalog.Product, bool, error) {
	t.s.mu.Lock()
	_, ok := t.s.products[id]
	t.s.mu.Unlock()
	if !ok {
		return catalog.Product{}, false, nil
	}

	l := t.s.rowLock(id)
	l.Lock()
	t.held = append(t.held, l)

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p := t.s.products[id]
	p.Stock -= t.decrements[id]
	if n := t.s.steal[id]; n > 0 {
		stored := t.s.products[id]
		stored.Stock -= n
		t.s.products[id] = stored
		delete(t.s.steal, id)
	}
	return p, true, ctx.Err()
}

func (t *memTx) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.products[id].Stock-t.decrements[id] < qty {
		return false, nil
	}
	t.decrements[id] += qty
	return true, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.insertErr != nil {
		return t.s.insertErr
	}
	if o.IdempotencyKey != nil {
		if _, taken := t.s.byKey[*o.IdempotencyKey]; taken {
			return ErrDuplicateRequest
		}
	}
	t.order = o
	return nil
}

func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, n := range t.decrements {
		p := t.s.products[id]
		p.Stock -= n
		t.s.products[id] = p
	}
	if t.order != nil {
		t.s.orders[t.order.ID] = t.order
		if t.order.IdempotencyKey != nil {
			t.s.byKey[*t.order.IdempotencyKey] = t.order.ID
		}
	}
	return nil
}

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}
