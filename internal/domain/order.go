package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates order progression.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusHold      Status = "hold"
	StatusCompleted Status = "completed"
)

// transitions is the full set of legal status edges. Deletion is not an
// edge; orders may be deleted from any state, terminal states included.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved: true,
		StatusDeclined: true,
		StatusHold:     true,
	},
	StatusHold: {
		StatusApproved: true,
		StatusDeclined: true,
	},
	StatusApproved: {
		StatusCompleted: true,
	},
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusHold, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	return transitions[s][next]
}

// Terminal reports whether no further status change is possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && ValidStatus(s)
}

// Order is a placed purchase. Product name and unit price are snapshots
// taken at placement so later catalog edits do not rewrite history; the
// same goes for the party display fields.
type Order struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     float64   `json:"unit_price"`
	Total         float64   `json:"total"`
	DealerID      uuid.UUID `json:"dealer_id"`
	DealerName    string    `json:"dealer_name"`
	DealerPhone   string    `json:"dealer_phone"`
	RetailerID    uuid.UUID `json:"retailer_id"`
	RetailerName  string    `json:"retailer_name"`
	RetailerPhone string    `json:"retailer_phone"`
	Status        Status    `json:"status"`
	StatusNote    string    `json:"status_note,omitempty"`
	// Reserved is set when stock was debited at placement (reserve_at_order
	// policy) so approval must not debit a second time.
	Reserved  bool      `json:"reserved,omitempty"`
	OrderedAt time.Time `json:"ordered_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
