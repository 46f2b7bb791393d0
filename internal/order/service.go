package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/notify"
	"github.com/MikeMC777/ecom-saas/internal/pricing"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

const (
	maxAttempts   = 2
	notifyTimeout = 5 * time.Second
	maxQuantity   = 10000
)

// statuses that send a shipping notification once committed.
var notifyOnStatus = map[Status]bool{
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
	StatusReturned:  true,
}

type Service struct {
	repo     Repository
	notifier notify.Dispatcher
	wg       sync.WaitGroup
}

func NewService(repo Repository, notifier notify.Dispatcher) *Service {
	if notifier == nil {
		notifier = notify.LogDispatcher{}
	}
	return &Service{repo: repo, notifier: notifier}
}

type line struct {
	productID string
	quantity  int
	shown     decimal.Decimal
}

// PlaceOrder creates one order for the session user in store st. Stock for
// every line is checked and decremented in the same transaction that records
// the order, so either all of it happens or none of it does.
func (s *Service) PlaceOrder(ctx context.Context, st *tenant.Store, sess auth.Session, in PlaceOrderRequest) (*Order, error) {
	if sess.UserID == "" {
		return nil, ErrUnauthorized
	}
	if st == nil || st.Platform || st.ID == "" {
		return nil, ErrStoreNotFound
	}
	lines, err := validateItems(in.Items)
	if err != nil {
		return nil, err
	}
	addr, err := validateAddress(in.ShippingAddress, sess)
	if err != nil {
		return nil, err
	}

	var o *Order
	err = s.withRetry(ctx, "place", func(ctx context.Context, tx Tx) error {
		var err error
		o, err = s.place(ctx, tx, st, sess, lines, addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order] placed id=%s store=%s user=%s total=%s fee=%s", o.ID, st.ID, sess.UserID, o.Total, o.CommissionFee)
	s.dispatch(notify.Event{
		Template:   notify.TemplateOrderConfirmation,
		OrderID:    o.ID,
		StoreID:    st.ID,
		Recipient:  addr.Email,
		Status:     string(o.Status),
		Total:      o.Total.StringFixed(2),
		OccurredAt: o.CreatedAt,
	})
	return o, nil
}

func (s *Service) place(ctx context.Context, tx Tx, st *tenant.Store, sess auth.Session, lines []line, addr Address) (*Order, error) {
	o := &Order{
		ID:      uuid.NewString(),
		StoreID: st.ID,
		UserID:  sess.UserID,
		Status:  StatusPending,
		Items:   make([]Item, len(lines)),
	}

	// Decrement in product id order so concurrent orders lock rows in the same sequence.
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return lines[idx[a]].productID < lines[idx[b]].productID })

	total := decimal.Zero
	for _, i := range idx {
		l := lines[i]
		sl, err := tx.DecrementStock(ctx, st.ID, l.productID, l.quantity)
		if errors.Is(err, product.ErrNotFound) {
			return nil, invalid(fmt.Sprintf("items[%d].product_id", i), "product %s not found", l.productID)
		}
		if err != nil {
			return nil, err
		}
		if !l.shown.IsZero() && !l.shown.Equal(sl.Price) {
			return nil, invalid(fmt.Sprintf("items[%d].unit_price", i), "price of %s changed to %s", sl.Name, sl.Price.StringFixed(2))
		}
		o.Items[i] = Item{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ProductID:   l.productID,
			ProductName: sl.Name,
			Quantity:    l.quantity,
			Price:       sl.Price,
		}
		total = total.Add(sl.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}

	addr.ID = uuid.NewString()
	addr.UserID = sess.UserID
	if err := tx.CreateAddress(ctx, &addr); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	o.AddressID = addr.ID
	o.Address = &addr

	o.Total = total
	o.CommissionFee = pricing.Fee(total, st.Plan)
	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// withRetry runs fn in a transaction and retries once on ErrTxConflict.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.repo.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrTxConflict) {
			return err
		}
		log.Printf("[order] %s attempt %d conflicted: %v", op, attempt, err)
	}
	return fmt.Errorf("%w: %v", ErrOrderFailed, err)
}

// UpdateStatus moves an order along its lifecycle. Cancelling or returning
// puts the items back in stock within the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, st *tenant.Store, id string, in UpdateStatusRequest) (*Order, error) {
	if st == nil || st.Platform {
		return nil, ErrStoreNotFound
	}
	to := Status(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !to.Valid() {
		return nil, invalid("status", "unknown status %q", in.Status)
	}

	var o *Order
	err := s.withRetry(ctx, "status", func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, st.ID, id)
		if err != nil {
			return err
		}
		from := cur.Status
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		if to.restocks() {
			items := append([]Item(nil), cur.Items...)
			sort.SliceStable(items, func(a, b int) bool { return items[a].ProductID < items[b].ProductID })
			for _, it := range items {
				if err := tx.RestoreStock(ctx, st.ID, it.ProductID, it.Quantity); err != nil {
					return fmt.Errorf("restock %s: %w", it.ProductID, err)
				}
			}
		}
		cur.Status = to
		if t := strings.TrimSpace(in.TrackingNumber); t != "" {
			cur.TrackingNumber = t
		}
		if err := tx.SetStatus(ctx, cur, from); err != nil {
			return err
		}
		o = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[order] status id=%s store=%s status=%s", o.ID, st.ID, o.Status)
	if notifyOnStatus[o.Status] && o.Address != nil && o.Address.Email != "" {
		s.dispatch(notify.Event{
			Template:       notify.TemplateShipping,
			OrderID:        o.ID,
			StoreID:        st.ID,
			Recipient:      o.Address.Email,
			Status:         string(o.Status),
			TrackingNumber: o.TrackingNumber,
			OccurredAt:     o.UpdatedAt,
		})
	}
	return o, nil
}

// GetForUser returns the order only when it belongs to the session user.
func (s *Service) GetForUser(ctx context.Context, st *tenant.Store, sess auth.Session, id string) (*Order, error) {
	if sess.UserID == "" {
		return nil, ErrUnauthorized
	}
	o, err := s.Get(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != sess.UserID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, st *tenant.Store, id string) (*Order, error) {
	if st == nil || st.Platform {
		return nil, ErrStoreNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, st.ID, id)
}

func (s *Service) ListForUser(ctx context.Context, st *tenant.Store, sess auth.Session, limit, offset int) ([]Order, error) {
	if sess.UserID == "" {
		return nil, ErrUnauthorized
	}
	if st == nil || st.Platform {
		return nil, ErrStoreNotFound
	}
	limit, offset = page(limit, offset)
	return s.repo.ListByUser(ctx, st.ID, sess.UserID, limit, offset)
}

func (s *Service) ListForStore(ctx context.Context, st *tenant.Store, status string, limit, offset int) ([]Order, error) {
	if st == nil || st.Platform {
		return nil, ErrStoreNotFound
	}
	f := Status(strings.ToUpper(strings.TrimSpace(status)))
	if f != "" && !f.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	limit, offset = page(limit, offset)
	return s.repo.ListByStore(ctx, st.ID, f, limit, offset)
}

func (s *Service) History(ctx context.Context, st *tenant.Store, id string) ([]StatusEvent, error) {
	if _, err := s.Get(ctx, st, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// Wait blocks until in-flight notifications are done.
func (s *Service) Wait() { s.wg.Wait() }

// dispatch sends e without blocking the caller. Failures are only logged.
func (s *Service) dispatch(e notify.Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Dispatch(ctx, e); err != nil {
			log.Printf("[order] notify %s order=%s failed: %v", e.Template, e.OrderID, err)
		}
	}()
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateItems(items []PlaceOrderItem) ([]line, error) {
	if len(items) == 0 {
		return nil, invalid("items", "at least one item is required")
	}
	out := make([]line, len(items))
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return nil, invalid(field+".product_id", "must be a uuid")
		}
		if it.Quantity <= 0 || it.Quantity > maxQuantity {
			return nil, invalid(field+".quantity", "must be between 1 and %d", maxQuantity)
		}
		l := line{productID: it.ProductID, quantity: it.Quantity}
		if p := strings.TrimSpace(it.UnitPrice); p != "" {
			d, err := decimal.NewFromString(p)
			if err != nil || d.IsNegative() {
				return nil, invalid(field+".unit_price", "must be a non-negative amount")
			}
			l.shown = d
		}
		out[i] = l
	}
	return out, nil
}

func validateAddress(in ShippingAddress, sess auth.Session) (Address, error) {
	a := Address{
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Email:      strings.TrimSpace(in.Email),
		Line1:      strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
	}
	required := []struct{ field, v string }{
		{"shipping_address.first_name", a.FirstName},
		{"shipping_address.last_name", a.LastName},
		{"shipping_address.address", a.Line1},
		{"shipping_address.city", a.City},
		{"shipping_address.postal_code", a.PostalCode},
	}
	for _, r := range required {
		if r.v == "" {
			return Address{}, invalid(r.field, "is required")
		}
	}
	if a.Email == "" {
		a.Email = sess.Email
	} else if _, err := mail.ParseAddress(a.Email); err != nil {
		return Address{}, invalid("shipping_address.email", "is not a valid email")
	}
	return a, nil
}
