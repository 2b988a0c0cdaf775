package domain

import (
	"time"

	"github.com/google/uuid"
)

// DealerConnection binds a retailer to its current dealer. At most one
// exists per retailer; connecting again replaces it. Disconnecting leaves
// existing orders untouched.
type DealerConnection struct {
	RetailerID  uuid.UUID `json:"retailer_id"`
	DealerID    uuid.UUID `json:"dealer_id"`
	DealerName  string    `json:"dealer_name"`
	DealerPhone string    `json:"dealer_phone"`
	ConnectedAt time.Time `json:"connected_at"`
}
