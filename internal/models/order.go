package models

// OrderType is the service mode of an order. The client only places dine-in orders.
type OrderType string

const OrderTypeDineIn OrderType = "dine_in"

// Common order statuses. The set is controlled by the backend, so Order.Status
// stays a plain string and unknown values pass through untouched.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusDelivered = "delivered"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Order is a submitted order as listed by the backend.
//
// Everything except Status is a read-only snapshot.
type Order struct {
	// ID is the backend identifier.
	ID int64 `json:"id"`

	// TableNumber is the raw table identifier entered by the waiter.
	TableNumber string `json:"table_number"`

	// Status is the only field the client mutates (optimistically).
	Status string `json:"status"`

	// Total is the order total computed by the backend.
	Total Money `json:"total"`

	// Waiter is the display name of the staff member who placed the order.
	Waiter string `json:"waiter"`

	// Area is the display name of the service area.
	Area string `json:"area"`

	// Items is the denormalised line snapshot.
	Items []OrderItem `json:"items"`

	// CreatedAt and UpdatedAt are backend timestamps, kept verbatim.
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`

	Notes *string `json:"notes,omitempty"`

	// CustomerName unifies registered customers and walk-in guests.
	CustomerName *string `json:"customer_name,omitempty"`

	// TableDisplay is the table number with its area prefix (e.g. "T#5").
	TableDisplay *string `json:"table_display,omitempty"`

	// FormattedTotal is the total with currency (e.g. "C$ 150.00").
	FormattedTotal *string `json:"formatted_total,omitempty"`
}

// OrderItem is one line of a submitted order.
type OrderItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Notes       string `json:"notes"`
	UnitPrice   Money  `json:"unit_price"`
}

// CartItem is one line of the order being assembled.
type CartItem struct {
	// Product is held by value; later catalog refreshes do not change it.
	Product Product

	// Quantity is always at least 1.
	Quantity int

	// Notes is free text for the kitchen ("no onions").
	Notes string
}

// NewOrderItem is one line of an order submission.
type NewOrderItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

// NewOrder is the body of POST /orders.
type NewOrder struct {
	AreaID      int64          `json:"area_id"`
	TableNumber string         `json:"table_number"`
	OrderType   OrderType      `json:"order_type"`
	Items       []NewOrderItem `json:"items"`

	// GuestName is sent as null when no customer name was entered.
	GuestName *string `json:"guest_name"`
}
