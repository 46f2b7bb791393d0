// Package ordertest provides an in-memory order.Repository with real
// all-or-nothing transaction semantics, for tests.
package ordertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/product"
)

// Repo serializes transactions behind one mutex and rolls back by restoring
// a snapshot taken at begin.
type Repo struct {
	mu        sync.Mutex
	products  map[string]product.Product
	addresses map[string]order.Address
	orders    map[string]order.Order
	events    []order.StatusEvent
	conflicts int
	txCount   int
	clock     time.Time
}

func New() *Repo {
	return &Repo{
		products:  map[string]product.Product{},
		addresses: map[string]order.Address{},
		orders:    map[string]order.Order{},
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddProduct seeds the catalog.
func (r *Repo) AddProduct(p product.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Status == "" {
		p.Status = product.StatusActive
	}
	r.products[p.ID] = p
}

func (r *Repo) Stock(productID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Stock
}

func (r *Repo) OrderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *Repo) AddressCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.addresses)
}

// FailWithConflict makes the next n transactions run and then roll back with order.ErrTxConflict.
func (r *Repo) FailWithConflict(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

// Transactions reports how many transactions were started.
func (r *Repo) Transactions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txCount
}

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCount++

	snap := r.snapshot()
	err := fn(ctx, &memTx{r: r})
	if err == nil && r.conflicts > 0 {
		r.conflicts--
		err = fmt.Errorf("%w: injected", order.ErrTxConflict)
	}
	if err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	products  map[string]product.Product
	addresses map[string]order.Address
	orders    map[string]order.Order
	events    int
}

func (r *Repo) snapshot() snapshot {
	s := snapshot{
		products:  make(map[string]product.Product, len(r.products)),
		addresses: make(map[string]order.Address, len(r.addresses)),
		orders:    make(map[string]order.Order, len(r.orders)),
		events:    len(r.events),
	}
	for k, v := range r.products {
		s.products[k] = v
	}
	for k, v := range r.addresses {
		s.addresses[k] = v
	}
	for k, v := range r.orders {
		s.orders[k] = v
	}
	return s
}

func (r *Repo) restore(s snapshot) {
	r.products, r.addresses, r.orders = s.products, s.addresses, s.orders
	r.events = r.events[:s.events]
}

func (r *Repo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *Repo) load(storeID, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok || o.StoreID != storeID {
		return nil, order.ErrNotFound
	}
	return r.hydrate(o), nil
}

func (r *Repo) hydrate(o order.Order) *order.Order {
	if a, ok := r.addresses[o.AddressID]; ok {
		o.Address = &a
	}
	o.Items = append([]order.Item(nil), o.Items...)
	for i := range o.Items {
		o.Items[i].ProductName = r.products[o.Items[i].ProductID].Name
	}
	return &o
}

func (r *Repo) GetByID(_ context.Context, storeID, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(storeID, id)
}

func (r *Repo) ListByUser(_ context.Context, storeID, userID string, limit, offset int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o order.Order) bool { return o.StoreID == storeID && o.UserID == userID }, limit, offset), nil
}

func (r *Repo) ListByStore(_ context.Context, storeID string, status order.Status, limit, offset int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(o order.Order) bool {
		return o.StoreID == storeID && (status == "" || o.Status == status)
	}, limit, offset), nil
}

func (r *Repo) list(keep func(order.Order) bool, limit, offset int) []order.Order {
	out := []order.Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, *r.hydrate(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []order.Order{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (r *Repo) History(_ context.Context, orderID string) ([]order.StatusEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.StatusEvent
	for _, e := range r.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// memTx runs with Repo.mu held by WithinTx.
type memTx struct{ r *Repo }

func (t *memTx) DecrementStock(_ context.Context, storeID, productID string, qty int) (*order.StockLine, error) {
	p, ok := t.r.products[productID]
	if !ok || p.StoreID != storeID || p.Status != product.StatusActive {
		return nil, product.ErrNotFound
	}
	if p.Stock < qty {
		return nil, &order.InsufficientStockError{ProductID: productID, ProductName: p.Name, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	t.r.products[productID] = p
	return &order.StockLine{Name: p.Name, Price: p.Price, Remaining: p.Stock}, nil
}

func (t *memTx) RestoreStock(_ context.Context, storeID, productID string, qty int) error {
	p, ok := t.r.products[productID]
	if !ok || p.StoreID != storeID {
		return product.ErrNotFound
	}
	p.Stock += qty
	t.r.products[productID] = p
	return nil
}

func (t *memTx) CreateAddress(_ context.Context, a *order.Address) error {
	t.r.addresses[a.ID] = *a
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, o *order.Order) error {
	if _, ok := t.r.addresses[o.AddressID]; !ok {
		return fmt.Errorf("address %s does not exist", o.AddressID)
	}
	o.CreatedAt = t.r.tick()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	cp.Address = nil
	cp.Items = append([]order.Item(nil), o.Items...)
	t.r.orders[o.ID] = cp
	return nil
}

func (t *memTx) LockOrder(_ context.Context, storeID, id string) (*order.Order, error) {
	return t.r.load(storeID, id)
}

func (t *memTx) SetStatus(_ context.Context, o *order.Order, from order.Status) error {
	cur, ok := t.r.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	cur.Status = o.Status
	cur.TrackingNumber = o.TrackingNumber
	cur.UpdatedAt = t.r.tick()
	o.UpdatedAt = cur.UpdatedAt
	t.r.orders[o.ID] = cur
	t.r.events = append(t.r.events, order.StatusEvent{
		ID: uuid.NewString(), OrderID: o.ID, From: from, To: o.Status, CreatedAt: cur.UpdatedAt,
	})
	return nil
}
