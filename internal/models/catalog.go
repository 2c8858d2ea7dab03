package models

// Product is a menu entry.
type Product struct {
	// ID is the backend identifier; the cart keys lines by it.
	ID int64 `json:"id"`

	// Name is matched case-insensitively by the catalog search.
	Name string `json:"name"`

	// Description is optional marketing text.
	Description *string `json:"description,omitempty"`

	// Price is the unit price.
	Price Money `json:"price"`

	// ImageURL is the absolute URL of the product photo, if any.
	ImageURL *string `json:"image_url"`

	// CategoryID links the product to its Category.
	CategoryID int64 `json:"category_id"`

	// CategoryName is denormalised by the backend for display.
	CategoryName string `json:"category_name"`

	// IsActive is false for products hidden from ordering.
	IsActive bool `json:"is_active"`
}

// Category groups products on the menu.
type Category struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url"`
}

// Area is a service zone (terrace, bar, salon) an order is placed in.
type Area struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Prefix is prepended to table numbers for display (e.g. "T" gives "T#5").
	Prefix *string `json:"prefix,omitempty"`

	// TotalTables is how many tables the area has.
	TotalTables *int `json:"total_tables,omitempty"`

	Description *string `json:"description,omitempty"`
}
