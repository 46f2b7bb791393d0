package tenant

import (
	"context"
	"net"
	"strings"
)

// Resolver maps request hostnames to stores.
type Resolver struct {
	repo     Repository
	reserved map[string]struct{}
}

func NewResolver(repo Repository, platformHosts []string) *Resolver {
	reserved := make(map[string]struct{}, len(platformHosts))
	for _, h := range platformHosts {
		reserved[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Resolver{repo: repo, reserved: reserved}
}

// Resolve returns the store owning host. Reserved hosts resolve to PlatformStore.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Store, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	bare := stripPort(host)
	if r.isReserved(host) || r.isReserved(bare) {
		p := PlatformStore
		return &p, nil
	}

	sub, _, _ := strings.Cut(bare, ".")
	if sub == "" {
		return nil, ErrStoreNotFound
	}
	return r.repo.GetBySubdomain(ctx, sub)
}

func (r *Resolver) isReserved(h string) bool {
	_, ok := r.reserved[h]
	return ok
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
