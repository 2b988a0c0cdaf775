package transport

import (
	"net/http"

	"dealerlink/internal/ledger"
	"dealerlink/internal/middleware"

	"github.com/google/uuid"
)

// actorFromContext parses the authenticated user's ID from the request
// context populated by the auth middleware.
func actorFromContext(r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// partyFromContext builds an order party from the auth claims, including
// the display fields that get snapshotted onto orders.
func partyFromContext(r *http.Request) (ledger.Party, bool) {
	id, ok := actorFromContext(r)
	if !ok {
		return ledger.Party{}, false
	}
	name, _ := middleware.GetUserName(r.Context())
	phone, _ := middleware.GetUserPhone(r.Context())
	return ledger.Party{ID: id, Name: name, Phone: phone}, true
}
