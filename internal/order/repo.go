package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-saas/internal/product"
)

// Repository reads orders and runs mutations inside a transaction.
type Repository interface {
	// WithinTx runs fn in one atomic unit. Errors from fn roll it back.
	// Conflicts that a retry may resolve are reported as ErrTxConflict.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, storeID, id string) (*Order, error)
	ListByUser(ctx context.Context, storeID, userID string, limit, offset int) ([]Order, error)
	ListByStore(ctx context.Context, storeID string, status Status, limit, offset int) ([]Order, error)
	History(ctx context.Context, orderID string) ([]StatusEvent, error)
}

// Tx is the set of writes allowed inside WithinTx.
type Tx interface {
	// DecrementStock removes qty units only if that leaves stock >= 0. It fails
	// with *InsufficientStockError or product.ErrNotFound and leaves stock untouched.
	DecrementStock(ctx context.Context, storeID, productID string, qty int) (*StockLine, error)
	RestoreStock(ctx context.Context, storeID, productID string, qty int) error
	CreateAddress(ctx context.Context, a *Address) error
	CreateOrder(ctx context.Context, o *Order) error
	// LockOrder loads the order with its items and holds it until the tx ends.
	LockOrder(ctx context.Context, storeID, id string) (*Order, error)
	// SetStatus stores o.Status and o.TrackingNumber and appends a status event.
	SetStatus(ctx context.Context, o *Order, from Status) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// classify maps retryable SQLSTATEs to ErrTxConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Message)
		}
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) DecrementStock(ctx context.Context, storeID, productID string, qty int) (*StockLine, error) {
	var (
		line  StockLine
		price string
	)
	err := t.tx.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $3, updated_at = NOW()
		WHERE id = $1 AND store_id = $2 AND status = 'ACTIVE' AND stock >= $3
		RETURNING name, price::text, stock
	`, productID, storeID, qty).Scan(&line.Name, &price, &line.Remaining)
	if err == nil {
		if line.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		return &line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Nothing updated: tell a missing product from a short one.
	var (
		name   string
		stock  int
		status string
	)
	err = t.tx.QueryRow(ctx, `
		SELECT name, stock, status FROM products WHERE id = $1 AND store_id = $2
	`, productID, storeID).Scan(&name, &stock, &status)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && status != string(product.StatusActive)) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, &InsufficientStockError{ProductID: productID, ProductName: name, Requested: qty, Available: stock}
}

func (t *pgTx) RestoreStock(ctx context.Context, storeID, productID string, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $3, updated_at = NOW()
		WHERE id = $1 AND store_id = $2
	`, productID, storeID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateAddress(ctx context.Context, a *Address) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO addresses (id, user_id, first_name, last_name, email, line1, city, postal_code, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
	`, a.ID, a.UserID, a.FirstName, a.LastName, a.Email, a.Line1, a.City, a.PostalCode)
	return err
}

func (t *pgTx) CreateOrder(ctx context.Context, o *Order) error {
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (id, store_id, user_id, address_id, status, total, commission_fee, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		RETURNING created_at, updated_at
	`, o.ID, o.StoreID, o.UserID, o.AddressID, o.Status, o.Total.String(), o.CommissionFee.String()).
		Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5)
		`, it.ID, o.ID, it.ProductID, it.Quantity, it.Price.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, storeID, id string) (*Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, orderSelect+`
		WHERE o.id = $1 AND o.store_id = $2
		FOR UPDATE OF o
	`, id, storeID))
	if err != nil {
		return nil, err
	}
	o.Items, err = queryItems(ctx, t.tx, o.ID)
	return o, err
}

func (t *pgTx) SetStatus(ctx context.Context, o *Order, from Status) error {
	if err := t.tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, tracking_number = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, o.ID, o.Status, o.TrackingNumber).Scan(&o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_status_events (id, order_id, from_status, to_status, created_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, uuid.NewString(), o.ID, from, o.Status)
	return err
}

const orderSelect = `
	SELECT o.id, o.store_id, o.user_id, o.address_id, o.status, o.total::text, o.commission_fee::text,
	       o.tracking_number, o.created_at, o.updated_at,
	       a.first_name, a.last_name, a.email, a.line1, a.city, a.postal_code
	FROM orders o
	JOIN addresses a ON a.id = o.address_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		a          Address
		total, fee string
	)
	if err := row.Scan(&o.ID, &o.StoreID, &o.UserID, &o.AddressID, &o.Status, &total, &fee,
		&o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
		&a.FirstName, &a.LastName, &a.Email, &a.Line1, &a.City, &a.PostalCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if o.CommissionFee, err = decimal.NewFromString(fee); err != nil {
		return nil, err
	}
	a.ID, a.UserID = o.AddressID, o.UserID
	o.Address = &a
	return &o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.price::text
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.product_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, storeID, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1 AND o.store_id = $2`, id, storeID))
	if err != nil {
		return nil, err
	}
	o.Items, err = queryItems(ctx, r.db, o.ID)
	return o, err
}

func (r *PGRepo) ListByUser(ctx context.Context, storeID, userID string, limit, offset int) ([]Order, error) {
	return r.list(ctx, orderSelect+`
		WHERE o.store_id = $1 AND o.user_id = $2
		ORDER BY o.created_at DESC LIMIT $3 OFFSET $4
	`, storeID, userID, limit, offset)
}

func (r *PGRepo) ListByStore(ctx context.Context, storeID string, status Status, limit, offset int) ([]Order, error) {
	return r.list(ctx, orderSelect+`
		WHERE o.store_id = $1 AND ($2 = '' OR o.status = $2)
		ORDER BY o.created_at DESC LIMIT $3 OFFSET $4
	`, storeID, string(status), limit, offset)
}

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) History(ctx context.Context, orderID string) ([]StatusEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, created_at
		FROM order_status_events WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
