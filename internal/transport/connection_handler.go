package transport

import (
	"net/http"

	"dealerlink/internal/directory"
	"dealerlink/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ConnectRequest identifies the dealer to connect to, by published phone
// number or by the dealer's generated connect key.
type ConnectRequest struct {
	Dealer string `json:"dealer" validate:"required"`
}

// ConnectionHandler handles the retailer's dealer connection.
type ConnectionHandler struct {
	directory directory.Service
	logger    *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(dir directory.Service, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{directory: dir, logger: logger}
}

// RegisterRoutes registers connection routes; all require the retailer role
func (h *ConnectionHandler) RegisterRoutes(r chi.Router, authMiddleware, requireRetailer func(http.Handler) http.Handler) {
	r.Route("/api/connection", func(r chi.Router) {
		r.Use(authMiddleware, requireRetailer)
		r.Post("/", h.Connect)
		r.Get("/", h.GetConnection)
		r.Delete("/", h.Disconnect)
	})
}

// Connect binds the retailer to a dealer, replacing any prior connection
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	retailerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ConnectRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	connection, err := h.directory.Connect(r.Context(), retailerID, req.Dealer)
	if err != nil {
		h.logger.Debug("Connect failed",
			zap.String("retailer_id", retailerID.String()),
			zap.Error(err),
		)
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Retailer connected to dealer",
		zap.String("retailer_id", retailerID.String()),
		zap.String("dealer_id", connection.DealerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, connection)
}

// GetConnection returns the retailer's current dealer connection
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	retailerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	connection, err := h.directory.Get(r.Context(), retailerID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, connection)
}

// Disconnect removes the retailer's connection; existing orders are kept
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	retailerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.directory.Disconnect(r.Context(), retailerID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Retailer disconnected from dealer", zap.String("retailer_id", retailerID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "disconnected from dealer"})
}
