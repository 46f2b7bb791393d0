package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeMC777/ecom-saas/internal/pricing"
)

var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61}[a-z0-9])$`)

// reservedSubdomains cannot be claimed by stores.
var reservedSubdomains = map[string]bool{
	"www": true, "admin": true, "api": true, "app": true, "main": true, "platform": true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateStore signs up a new store owned by ownerID. The subdomain is immutable afterwards.
func (s *Service) CreateStore(ctx context.Context, ownerID string, in CreateStoreRequest) (*Store, error) {
	name := strings.TrimSpace(in.Name)
	sub := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if name == "" || sub == "" {
		return nil, fmt.Errorf("%w: name and subdomain are required", ErrInvalidStore)
	}
	if !subdomainRe.MatchString(sub) || reservedSubdomains[sub] {
		return nil, fmt.Errorf("%w: subdomain %q is not allowed", ErrInvalidStore, sub)
	}
	plan, err := pricing.ParsePlan(in.Plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStore, err)
	}

	st := &Store{
		ID:        uuid.NewString(),
		Name:      name,
		Subdomain: sub,
		Plan:      plan,
		OwnerID:   ownerID,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
