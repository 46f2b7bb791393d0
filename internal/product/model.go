package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDraft    Status = "DRAFT"
	StatusArchived Status = "ARCHIVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDraft, StatusArchived:
		return true
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	CategoryID  *string         `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	Q      string    `json:"q,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Mechanical Keyboard"`
	Description string `json:"description" example:"RGB 60%"`
	Price       string `json:"price"       example:"199.90"`
	Stock       int    `json:"stock"       example:"10"`
	Status      string `json:"status"      example:"ACTIVE"`
	CategoryID  string `json:"category_id" example:"9b2f4c1e-3d0a-4b7e-8f61-2c5d9e0a7b13"`
}

// UpdateProductRequest payload of partial update. Nil fields are left unchanged.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Stock       *int    `json:"stock"`
	Status      *string `json:"status"`
	// CategoryID "" detaches the product from its category.
	CategoryID *string `json:"category_id"`
}

// Category groups products of one store. Categories may nest through ParentID.
type Category struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryRequest payload for creating or replacing a category.
// swagger:model CategoryRequest
type CategoryRequest struct {
	Name     string `json:"name"      example:"Keyboards"`
	Slug     string `json:"slug"      example:"keyboards"`
	ParentID string `json:"parent_id" example:""`
}
