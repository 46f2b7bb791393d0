package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrStoreNotFound  = errors.New("store not found")
	ErrSubdomainTaken = errors.New("subdomain already taken")
	ErrInvalidStore   = errors.New("invalid store")
)

type Repository interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*Store, error)
	Create(ctx context.Context, s *Store) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const storeColumns = `id, name, subdomain, plan, owner_id, created_at`

func scanStore(row pgx.Row) (*Store, error) {
	var s Store
	if err := row.Scan(&s.ID, &s.Name, &s.Subdomain, &s.Plan, &s.OwnerID, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGRepo) GetBySubdomain(ctx context.Context, subdomain string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanStore(r.db.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE subdomain=$1`, subdomain))
}

func (r *PGRepo) Create(ctx context.Context, s *Store) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO stores (id, name, subdomain, plan, owner_id, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		RETURNING created_at
	`, s.ID, s.Name, s.Subdomain, s.Plan, s.OwnerID).Scan(&s.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSubdomainTaken
	}
	return err
}
