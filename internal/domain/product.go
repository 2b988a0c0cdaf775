package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents an item in a dealer's catalog. Stock is mutated by the
// owning dealer directly and by the order ledger when an order is approved.
type Product struct {
	ID          uuid.UUID `json:"id"`
	DealerID    uuid.UUID `json:"dealer_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
