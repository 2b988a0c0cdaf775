package transport

import (
	"net/http"

	"dealerlink/internal/catalog"
	"dealerlink/internal/directory"
	"dealerlink/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductRequest is the create/update payload for catalog products.
type ProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category"`
	Stock       *int    `json:"stock" validate:"required,gte=0"`
}

// StockUpdateRequest sets a product's absolute stock level.
type StockUpdateRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// ProductHandler handles catalog HTTP requests. Dealers manage their own
// products; retailers browse the catalog of their connected dealer.
type ProductHandler struct {
	catalog   catalog.Service
	directory directory.Service
	logger    *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(cat catalog.Service, dir directory.Service, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: cat, directory: dir, logger: logger}
}

// RegisterRoutes registers catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, requireDealer, requireRetailer func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware, requireDealer)
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Put("/{productID}", h.UpdateProduct)
		r.Patch("/{productID}/stock", h.UpdateStock)
		r.Delete("/{productID}", h.DeleteProduct)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware, requireRetailer)
		r.Get("/api/catalog", h.BrowseCatalog)
	})
}

// CreateProduct adds a product to the dealer's catalog
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), dealerID, catalog.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       *req.Stock,
	})
	if err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("dealer_id", dealerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// ListProducts returns the dealer's own catalog
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), dealerID)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// UpdateProduct replaces a product's attributes
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), dealerID, productID, catalog.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       *req.Stock,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// UpdateStock sets a product's stock level
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req StockUpdateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.catalog.UpdateStock(r.Context(), dealerID, productID, *req.Stock); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Stock updated",
		zap.String("product_id", productID.String()),
		zap.Int("stock", *req.Stock),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "stock updated"})
}

// DeleteProduct removes a product; deleting an absent product succeeds
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := actorFromContext(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), dealerID, productID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// BrowseCatalog returns the connected dealer's products for a retailer
func (h *ProductHandler) BrowseCatalog(w http.ResponseWriter, r *http.Request) {
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

	products, err := h.catalog.ListProducts(r.Context(), connection.DealerID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}
