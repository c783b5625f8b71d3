package domain

import "time"

// Product is a game in the catalog. The shop reads products but never
// writes them; the catalog is maintained by an external admin tool.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	ReleaseYear int       `json:"release_year"`
	Photo       string    `json:"photo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category is a distinct product category with its URL slug.
type Category struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}
