package transport

import (
	"net/http"

	"dealerlink/internal/directory"
	"dealerlink/internal/domain"
	"dealerlink/internal/ledger"
	"dealerlink/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceOrderRequest is the retailer's order payload. The dealer is implied
// by the retailer's current connection.
type PlaceOrderRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// StatusUpdateRequest moves an order along the status lifecycle.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved declined hold completed"`
	Note   string `json:"note"`
}

// OrderHandler handles order HTTP requests for both roles.
type OrderHandler struct {
	ledger    ledger.Ledger
	directory directory.Service
	logger    *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(led ledger.Ledger, dir directory.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{ledger: led, directory: dir, logger: logger}
}

// RegisterRoutes registers order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, requireDealer, requireRetailer func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.ListOrders)
		r.Delete("/{orderID}", h.DeleteOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireRetailer)
			r.Post("/", h.PlaceOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireDealer)
			r.Patch("/{orderID}/status", h.UpdateStatus)
		})
	})
}

// PlaceOrder creates an order against the retailer's connected dealer
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	retailer, ok := partyFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	connection, err := h.directory.Get(r.Context(), retailer.ID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	order, err := h.ledger.PlaceOrder(r.Context(), ledger.PlaceOrderInput{
		Retailer: retailer,
		Dealer: ledger.Party{
			ID:    connection.DealerID,
			Name:  connection.DealerName,
			Phone: connection.DealerPhone,
		},
		ProductID: productID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.logger.Warn("Failed to place order", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("retailer_id", retailer.ID.String()),
		zap.String("dealer_id", connection.DealerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders returns the caller's partition, newest first
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	role, _ := middleware.GetUserRole(r.Context())

	var orders []*domain.Order
	var err error
	if role == domain.RoleDealer {
		orders, err = h.ledger.ListForDealer(r.Context(), actorID)
	} else {
		orders, err = h.ledger.ListForRetailer(r.Context(), actorID)
	}
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// UpdateStatus transitions an order; only the owning dealer may call this
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req StatusUpdateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.ledger.UpdateStatus(r.Context(), dealerID, orderID, domain.Status(req.Status), req.Note)
	if err != nil {
		h.logger.Warn("Failed to update order status",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// DeleteOrder removes an order from all projections; either party may call
// it, from any status. Stock is never restored.
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if err := h.ledger.DeleteOrder(r.Context(), actorID, orderID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Order deleted", zap.String("order_id", orderID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}
