// Package product provides the tenant-scoped catalog: repository interface,
// PostgreSQL implementation and the admin service on top of it.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-saas/internal/pricing"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

var (
	ErrNotFound = errors.New("product not found")
	// ErrInUse is returned when deleting a product that existing orders reference.
	ErrInUse = errors.New("product is referenced by orders")
)

type Query struct {
	Q          string
	CategoryID string
	Limit      int
	Offset     int
	ActiveOnly bool
}

// Normalize clamps paging values the same way every backend does.
func (q Query) Normalize() Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Q = strings.TrimSpace(q.Q)
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	return q
}

type Repository interface {
	// Create inserts p unless its store already holds as many products as plan allows.
	Create(ctx context.Context, p *Product, plan pricing.Plan) error
	GetByID(ctx context.Context, storeID, id string) (*Product, error)
	List(ctx context.Context, storeID string, q Query) ([]Product, error)
	// Update writes every field of p except Stock, which is written only when
	// stock is non-nil. p.Stock is refreshed from the stored row.
	Update(ctx context.Context, p *Product, stock *int) error
	Delete(ctx context.Context, storeID, id string) (bool, error)
}

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type PGRepo struct{ db DB }

func NewPGRepo(db DB) *PGRepo { return &PGRepo{db: db} }

const productColumns = `id, store_id, category_id, name, description, price::text, stock, status, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.StoreID, &p.CategoryID, &p.Name, &p.Description, &price, &p.Stock, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("product %s: bad price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return &p, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (r *PGRepo) Create(ctx context.Context, p *Product, plan pricing.Plan) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The store row lock serializes concurrent creates so the count stays exact.
	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM stores WHERE id=$1 FOR UPDATE`, p.StoreID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.ErrStoreNotFound
		}
		return err
	}
	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE store_id=$1`, p.StoreID).Scan(&n); err != nil {
		return err
	}
	if !pricing.CanAddProduct(plan, n) {
		return fmt.Errorf("%w: plan %s allows %d products", ErrPlanLimit, plan, n)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO products (id, store_id, category_id, name, description, price, stock, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
		RETURNING created_at, updated_at
	`, p.ID, p.StoreID, p.CategoryID, p.Name, p.Description, p.Price.String(), p.Stock, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pgCode(err) == "23503" {
		return fmt.Errorf("%w: unknown category", ErrInvalid)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, storeID, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id=$1 AND store_id=$2
	`, id, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *PGRepo) List(ctx context.Context, storeID string, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q = q.Normalize()
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1
		  AND ($2 = '' OR name ILIKE '%'||$2||'%' OR description ILIKE '%'||$2||'%')
		  AND (NOT $3 OR status = 'ACTIVE')
		  AND ($6 = '' OR category_id::text = $6)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, storeID, q.Q, q.ActiveOnly, q.Limit, q.Offset, q.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, p *Product, stock *int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		UPDATE products
		SET name = $3,
		    description = $4,
		    price = $5,
		    stock = COALESCE($6::int, stock),
		    status = $7,
		    category_id = $8,
		    updated_at = NOW()
		WHERE id = $1 AND store_id = $2
		RETURNING stock, updated_at
	`, p.ID, p.StoreID, p.Name, p.Description, p.Price.String(), stock, p.Status, p.CategoryID).Scan(&p.Stock, &p.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case pgCode(err) == "23503":
		return fmt.Errorf("%w: unknown category", ErrInvalid)
	}
	return err
}

func (r *PGRepo) Delete(ctx context.Context, storeID, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1 AND store_id=$2`, id, storeID)
	if pgCode(err) == "23503" {
		return false, ErrInUse
	}
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
