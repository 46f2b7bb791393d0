package order

// PlaceOrderItem payload de ítem.
// swagger:model PlaceOrderItem
type PlaceOrderItem struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"2"`
	// Price the customer saw. Optional; when present it must match the catalog.
	UnitPrice string `json:"unit_price" example:"25.00"`
}

// ShippingAddress payload de dirección de envío.
// swagger:model ShippingAddress
type ShippingAddress struct {
	Email      string `json:"email"       example:"ada@example.com"`
	FirstName  string `json:"first_name"  example:"Ada"`
	LastName   string `json:"last_name"   example:"Lovelace"`
	Address    string `json:"address"     example:"12 Analytical St"`
	City       string `json:"city"        example:"London"`
	PostalCode string `json:"postal_code" example:"N1 9GU"`
}

// PlaceOrderRequest payload de creación de orden.
// swagger:model PlaceOrderRequest
type PlaceOrderRequest struct {
	Items           []PlaceOrderItem `json:"items"`
	ShippingAddress ShippingAddress  `json:"shipping_address"`
}

// PlaceOrderResponse is returned on 201.
// swagger:model PlaceOrderResponse
type PlaceOrderResponse struct {
	OrderID       string `json:"order_id"`
	Status        Status `json:"status"`
	Total         string `json:"total"`
	CommissionFee string `json:"commission_fee"`
}

// UpdateStatusRequest payload de cambio de estado.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status         string `json:"status"          example:"SHIPPED"`
	TrackingNumber string `json:"tracking_number" example:"1Z999AA10123456784"`
}

// ListResponse is a page of orders.
// swagger:model OrderListResponse
type ListResponse struct {
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Items  []Order `json:"items"`
}
