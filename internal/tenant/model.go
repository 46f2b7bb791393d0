package tenant

import (
	"time"

	"github.com/MikeMC777/ecom-saas/internal/pricing"
)

// Store is the tenant boundary. A store with Platform set is the synthetic
// tenant of the marketing site and owns no catalog data.
type Store struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Subdomain string       `json:"subdomain"`
	Plan      pricing.Plan `json:"plan"`
	OwnerID   string       `json:"owner_id"`
	Platform  bool         `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
}

// PlatformStore is the tenant resolved for reserved hosts.
var PlatformStore = Store{Name: "platform", Subdomain: "platform", Platform: true}

// CreateStoreRequest payload de alta de tienda.
// swagger:model CreateStoreRequest
type CreateStoreRequest struct {
	Name      string `json:"name"      example:"Acme Goods"`
	Subdomain string `json:"subdomain" example:"acme"`
	Plan      string `json:"plan"      example:"FREE"`
}
