package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"dealerlink/internal/domain"
	"dealerlink/internal/store"

	"github.com/google/uuid"
)

const productsRoot = "products"

// casRetries bounds the optimistic-write loop on stock decrements.
const casRetries = 5

// CreateProductInput carries the dealer-supplied product attributes.
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
}

// Service manages a dealer's product catalog. Products live at
// products/{dealerId}/{productId}; each dealer mutates only its own.
type Service interface {
	CreateProduct(ctx context.Context, dealerID uuid.UUID, input CreateProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, dealerID, productID uuid.UUID, input CreateProductInput) (*domain.Product, error)
	UpdateStock(ctx context.Context, dealerID, productID uuid.UUID, newStock int) error
	DeleteProduct(ctx context.Context, dealerID, productID uuid.UUID) error
	GetProduct(ctx context.Context, dealerID, productID uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, dealerID uuid.UUID) ([]*domain.Product, error)

	// DecrementStock atomically debits stock, failing with
	// domain.ErrInsufficientStock when the result would be negative. This is
	// the call the order ledger makes on approval; concurrent decrements
	// against the same product serialize through the store's conditional
	// write.
	DecrementStock(ctx context.Context, dealerID, productID uuid.UUID, by int) (int, error)
}

type service struct {
	store store.Store
}

// NewService creates a catalog Service backed by the given document store.
func NewService(st store.Store) Service {
	return &service{store: st}
}

func productPath(dealerID, productID uuid.UUID) string {
	return store.Join(productsRoot, dealerID.String(), productID.String())
}

func validateInput(input CreateProductInput) error {
	if input.Name == "" {
		return fmt.Errorf("product name is required: %w", domain.ErrValidation)
	}
	if input.Price < 0 {
		return fmt.Errorf("product price must not be negative: %w", domain.ErrValidation)
	}
	if input.Stock < 0 {
		return fmt.Errorf("product stock must not be negative: %w", domain.ErrValidation)
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, dealerID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		DealerID:    dealerID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Write(ctx, productPath(dealerID, product.ID), product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, dealerID, productID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, dealerID, productID)
	if err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Category = input.Category
	product.Stock = input.Stock
	product.UpdatedAt = time.Now().UTC()

	if err := s.store.Write(ctx, productPath(dealerID, productID), product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *service) UpdateStock(ctx context.Context, dealerID, productID uuid.UUID, newStock int) error {
	if newStock < 0 {
		return fmt.Errorf("stock must not be negative: %w", domain.ErrValidation)
	}

	product, err := s.GetProduct(ctx, dealerID, productID)
	if err != nil {
		return err
	}

	product.Stock = newStock
	product.UpdatedAt = time.Now().UTC()

	if err := s.store.Write(ctx, productPath(dealerID, productID), product); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

// DeleteProduct is idempotent; deleting an absent product is not an error.
func (s *service) DeleteProduct(ctx context.Context, dealerID, productID uuid.UUID) error {
	if err := s.store.Delete(ctx, productPath(dealerID, productID)); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, dealerID, productID uuid.UUID) (*domain.Product, error) {
	snapshot, err := s.store.Read(ctx, productPath(dealerID, productID))
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	product := &domain.Product{}
	if err := snapshot.Decode(product); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, dealerID uuid.UUID) ([]*domain.Product, error) {
	docs, err := s.store.List(ctx, store.Join(productsRoot, dealerID.String())+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, 0, len(docs))
	for path, raw := range docs {
		product := &domain.Product{}
		if err := json.Unmarshal(raw, product); err != nil {
			return nil, fmt.Errorf("failed to decode product at %s: %w", path, err)
		}
		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (s *service) DecrementStock(ctx context.Context, dealerID, productID uuid.UUID, by int) (int, error) {
	if by <= 0 {
		return 0, fmt.Errorf("decrement must be positive: %w", domain.ErrValidation)
	}

	path := productPath(dealerID, productID)
	for attempt := 0; attempt < casRetries; attempt++ {
		snapshot, err := s.store.Read(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("failed to read product: %w", err)
		}
		if snapshot == nil {
			return 0, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}

		product := &domain.Product{}
		if err := snapshot.Decode(product); err != nil {
			return 0, fmt.Errorf("failed to decode product: %w", err)
		}

		if product.Stock < by {
			return 0, fmt.Errorf("product %s has %d in stock, need %d: %w",
				productID, product.Stock, by, domain.ErrInsufficientStock)
		}

		product.Stock -= by
		product.UpdatedAt = time.Now().UTC()

		err = s.store.WriteIf(ctx, path, product, snapshot.Version)
		if err == store.ErrVersionMismatch {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to write stock decrement: %w", err)
		}
		return product.Stock, nil
	}
	return 0, fmt.Errorf("stock decrement for product %s lost %d races: %w", productID, casRetries, store.ErrVersionMismatch)
}
