package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusReturned   Status = "RETURNED"
)

// transitions is the order lifecycle. CANCELLED and RETURNED are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusProcessing, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned},
	StatusCancelled:  {},
	StatusReturned:   {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// restocks reports whether reaching s puts the items back on the shelf.
func (s Status) restocks() bool {
	return s == StatusCancelled || s == StatusReturned
}

type Order struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"store_id"`
	UserID         string          `json:"user_id"`
	AddressID      string          `json:"address_id"`
	Status         Status          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	CommissionFee  decimal.Decimal `json:"commission_fee"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Address        *Address        `json:"shipping_address,omitempty"`
	Items          []Item          `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Item is immutable once the order exists. Price is the catalog price at purchase time.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Address is a per-order snapshot of the shipping fields.
type Address struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Line1      string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type StatusEvent struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from_status"`
	To        Status    `json:"to_status"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLine is what a successful stock decrement reports about the product.
type StockLine struct {
	Name      string
	Price     decimal.Decimal
	Remaining int
}
