package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

var (
	ErrInvalid   = errors.New("invalid product")
	ErrPlanLimit = errors.New("plan product limit reached")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Create(ctx context.Context, st *tenant.Store, in CreateProductRequest) (*Product, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	p := &Product{
		ID:          uuid.NewString(),
		StoreID:     st.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Stock:       in.Stock,
		Status:      StatusActive,
	}
	if in.Status != "" {
		p.Status = Status(strings.ToUpper(in.Status))
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return nil, err
	}
	p.Price = price
	if p.CategoryID, err = parseCategoryID(in.CategoryID); err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	// The plan limit is checked by the repository under the store row lock.
	if err := s.repo.Create(ctx, p, st.Plan); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies the non-nil fields of in to the product. Stock is only
// written when in.Stock is set so concurrent order decrements survive.
func (s *Service) Update(ctx context.Context, st *tenant.Store, id string, in UpdateProductRequest) (*Product, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	p, err := s.Get(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if p.Price, err = parsePrice(*in.Price); err != nil {
			return nil, err
		}
	}
	var stock *int
	if in.Stock != nil {
		p.Stock = *in.Stock
		stock = in.Stock
	}
	if in.Status != nil {
		p.Status = Status(strings.ToUpper(*in.Status))
	}
	if in.CategoryID != nil {
		if p.CategoryID, err = parseCategoryID(*in.CategoryID); err != nil {
			return nil, err
		}
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p, stock); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, st *tenant.Store, id string) (*Product, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, st.ID, id)
}

// GetActive hides products that are not on sale.
func (s *Service) GetActive(ctx context.Context, st *tenant.Store, id string) (*Product, error) {
	p, err := s.Get(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, st *tenant.Store, q Query) ([]Product, error) {
	if st == nil || st.Platform {
		return nil, tenant.ErrStoreNotFound
	}
	return s.repo.List(ctx, st.ID, q.Normalize())
}

func (s *Service) Delete(ctx context.Context, st *tenant.Store, id string) error {
	if st == nil || st.Platform {
		return tenant.ErrStoreNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ok, err := s.repo.Delete(ctx, st.ID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q is not a number", ErrInvalid, raw)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be positive", ErrInvalid)
	}
	if d.Exponent() < -2 {
		return decimal.Decimal{}, fmt.Errorf("%w: price has more than 2 decimals", ErrInvalid)
	}
	return d, nil
}

// parseCategoryID maps "" to no category.
func parseCategoryID(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return nil, fmt.Errorf("%w: category_id must be a uuid", ErrInvalid)
	}
	return &raw, nil
}

func validate(p *Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must be non-negative", ErrInvalid)
	case !p.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, p.Status)
	}
	return nil
}
