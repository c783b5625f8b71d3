package domain

import "time"

// CartLine is one product in an anonymous customer's cart. UnitPrice is the
// product price when the line was first added and does not follow later
// price changes. Version increases on every write to the line.
type CartLine struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"-"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductPhoto string    `json:"product_photo"`
	Quantity     int       `json:"quantity"`
	UnitPrice    int64     `json:"unit_price"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Subtotal returns quantity times the snapshot unit price.
func (l CartLine) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// LineVersion identifies one observed state of a cart line.
type LineVersion struct {
	ID      string
	Version int
}

// CartTotal sums the subtotals of lines.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount sums the quantities of lines, the number shown on the cart badge.
func ItemCount(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// Versions returns the (id, version) snapshot of lines.
func Versions(lines []CartLine) []LineVersion {
	out := make([]LineVersion, len(lines))
	for i, l := range lines {
		out[i] = LineVersion{ID: l.ID, Version: l.Version}
	}
	return out
}
