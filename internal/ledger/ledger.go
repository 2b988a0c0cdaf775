package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"dealerlink/internal/catalog"
	"dealerlink/internal/domain"
	"dealerlink/internal/notify"
	"dealerlink/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Projection roots. Every order is written to all three; each one serves a
// different query pattern and is authoritative only for itself.
const (
	ordersRoot         = "orders"
	dealerOrdersRoot   = "dealerOrders"
	retailerOrdersRoot = "retailerOrders"
)

// StockPolicy decides when stock is debited for an order.
type StockPolicy string

const (
	// StockPolicyCheckAtAccept only checks stock advisorily at placement and
	// debits at approval. This matches the historical behaviour and leaves a
	// known overselling window between placement and approval.
	StockPolicyCheckAtAccept StockPolicy = "check_at_accept"

	// StockPolicyReserveAtOrder debits stock at placement; approval then
	// skips the second debit.
	StockPolicyReserveAtOrder StockPolicy = "reserve_at_order"
)

// ValidStockPolicy reports whether p is a known policy.
func ValidStockPolicy(p StockPolicy) bool {
	return p == StockPolicyCheckAtAccept || p == StockPolicyReserveAtOrder
}

// Party identifies one side of an order together with the display fields
// snapshotted onto it.
type Party struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

// PlaceOrderInput carries everything needed to create an order.
type PlaceOrderInput struct {
	Retailer  Party
	Dealer    Party
	ProductID uuid.UUID
	Quantity  int
}

// Ledger owns order records, the status state machine, stock adjustment on
// approval, and the three-way projection fan-out.
type Ledger interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*domain.Order, error)

	// UpdateStatus moves an order along the state machine. Only the dealer
	// owning the order may call it. Transitioning into approved debits
	// product stock first; when that fails the order is left untouched.
	UpdateStatus(ctx context.Context, dealerID, orderID uuid.UUID, next domain.Status, note string) (*domain.Order, error)

	// DeleteOrder removes the order from all projections. Either party may
	// delete, from any state. Stock debited earlier is not restored.
	DeleteOrder(ctx context.Context, actorID, orderID uuid.UUID) error

	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListForDealer(ctx context.Context, dealerID uuid.UUID) ([]*domain.Order, error)
	ListForRetailer(ctx context.Context, retailerID uuid.UUID) ([]*domain.Order, error)
}

type ledger struct {
	store    store.Store
	catalog  catalog.Service
	notifier notify.Notifier
	policy   StockPolicy
	logger   *zap.Logger
}

// NewLedger creates the order ledger.
func NewLedger(st store.Store, cat catalog.Service, notifier notify.Notifier, policy StockPolicy, logger *zap.Logger) Ledger {
	if !ValidStockPolicy(policy) {
		policy = StockPolicyCheckAtAccept
	}
	return &ledger{
		store:    st,
		catalog:  cat,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

func globalOrderPath(orderID uuid.UUID) string {
	return store.Join(ordersRoot, orderID.String())
}

func projectionPaths(order *domain.Order) []string {
	return []string{
		globalOrderPath(order.ID),
		store.Join(dealerOrdersRoot, order.DealerID.String(), order.ID.String()),
		store.Join(retailerOrdersRoot, order.RetailerID.String(), order.ID.String()),
	}
}

func (l *ledger) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*domain.Order, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive: %w", domain.ErrValidation)
	}

	product, err := l.catalog.GetProduct(ctx, input.Dealer.ID, input.ProductID)
	if err != nil {
		return nil, err
	}

	// Advisory check only under check_at_accept: stock is not reserved here,
	// the enforced debit happens at approval.
	if input.Quantity > product.Stock {
		l.notifier.Publish(notify.Event{
			Kind:    notify.KindInsufficientStock,
			Failure: true,
			Message: "not enough stock available",
			Fields: map[string]interface{}{
				"product_id": input.ProductID.String(),
				"requested":  input.Quantity,
				"available":  product.Stock,
			},
		})
		return nil, fmt.Errorf("product %s has %d in stock, requested %d: %w",
			input.ProductID, product.Stock, input.Quantity, domain.ErrOutOfStock)
	}

	reserved := false
	if l.policy == StockPolicyReserveAtOrder {
		if _, err := l.catalog.DecrementStock(ctx, input.Dealer.ID, input.ProductID, input.Quantity); err != nil {
			return nil, err
		}
		reserved = true
	}

	orderID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order id: %w", err)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:            orderID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		Quantity:      input.Quantity,
		UnitPrice:     product.Price,
		Total:         product.Price * float64(input.Quantity),
		DealerID:      input.Dealer.ID,
		DealerName:    input.Dealer.Name,
		DealerPhone:   input.Dealer.Phone,
		RetailerID:    input.Retailer.ID,
		RetailerName:  input.Retailer.Name,
		RetailerPhone: input.Retailer.Phone,
		Status:        domain.StatusPending,
		Reserved:      reserved,
		OrderedAt:     now,
		UpdatedAt:     now,
	}

	if err := l.fanOutWrite(ctx, order); err != nil {
		return nil, err
	}

	l.notifier.Publish(notify.Event{
		Kind:    notify.KindOrderPlaced,
		Message: "order placed successfully",
		Fields: map[string]interface{}{
			"order_id":    order.ID.String(),
			"dealer_id":   order.DealerID.String(),
			"retailer_id": order.RetailerID.String(),
			"total":       order.Total,
		},
	})
	return order, nil
}

func (l *ledger) UpdateStatus(ctx context.Context, dealerID, orderID uuid.UUID, next domain.Status, note string) (*domain.Order, error) {
	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Scoped lookup: an order owned by another dealer is invisible to this one.
	if order.DealerID != dealerID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	if !domain.ValidStatus(next) {
		return nil, fmt.Errorf("unknown status %q: %w", next, domain.ErrValidation)
	}
	if !order.Status.CanTransition(next) {
		return nil, fmt.Errorf("cannot move order %s from %s to %s: %w",
			orderID, order.Status, next, domain.ErrInvalidTransition)
	}

	if next == domain.StatusApproved && !order.Reserved {
		if _, err := l.catalog.DecrementStock(ctx, order.DealerID, order.ProductID, order.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				l.notifier.Publish(notify.Event{
					Kind:    notify.KindInsufficientStock,
					Failure: true,
					Message: "not enough stock available",
					Fields: map[string]interface{}{
						"order_id":   orderID.String(),
						"product_id": order.ProductID.String(),
						"requested":  order.Quantity,
					},
				})
			}
			return nil, err
		}
	}

	order.Status = next
	order.StatusNote = note
	order.UpdatedAt = time.Now().UTC()

	if err := l.fanOutWrite(ctx, order); err != nil {
		return nil, err
	}

	l.notifier.Publish(notify.Event{
		Kind:    notify.KindOrderStatusUpdated,
		Message: "order status updated successfully",
		Fields: map[string]interface{}{
			"order_id": order.ID.String(),
			"status":   string(order.Status),
		},
	})
	return order, nil
}

func (l *ledger) DeleteOrder(ctx context.Context, actorID, orderID uuid.UUID) error {
	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if actorID != order.DealerID && actorID != order.RetailerID {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	var succeeded, failed []string
	var firstErr error
	for _, path := range projectionPaths(order) {
		if err := l.store.Delete(ctx, path); err != nil {
			failed = append(failed, path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = append(succeeded, path)
	}
	if firstErr != nil {
		if len(succeeded) == 0 {
			return fmt.Errorf("failed to delete order: %w", firstErr)
		}
		return &store.PartialWriteError{Succeeded: succeeded, Failed: failed, Err: firstErr}
	}

	l.notifier.Publish(notify.Event{
		Kind:    notify.KindOrderDeleted,
		Message: "order deleted successfully",
		Fields:  map[string]interface{}{"order_id": orderID.String()},
	})
	return nil
}

func (l *ledger) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	snapshot, err := l.store.Read(ctx, globalOrderPath(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	order := &domain.Order{}
	if err := snapshot.Decode(order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return order, nil
}

// ListForDealer reads the dealer partition only, newest first.
func (l *ledger) ListForDealer(ctx context.Context, dealerID uuid.UUID) ([]*domain.Order, error) {
	return l.listPartition(ctx, store.Join(dealerOrdersRoot, dealerID.String())+"/")
}

// ListForRetailer reads the retailer partition only, newest first.
func (l *ledger) ListForRetailer(ctx context.Context, retailerID uuid.UUID) ([]*domain.Order, error) {
	return l.listPartition(ctx, store.Join(retailerOrdersRoot, retailerID.String())+"/")
}

func (l *ledger) listPartition(ctx context.Context, prefix string) ([]*domain.Order, error) {
	docs, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(docs))
	for path, raw := range docs {
		order := &domain.Order{}
		if err := json.Unmarshal(raw, order); err != nil {
			return nil, fmt.Errorf("failed to decode order at %s: %w", path, err)
		}
		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})
	return orders, nil
}

// fanOutWrite writes the order to all three projections. The writes are
// independent; a partial failure reports which paths landed so the caller
// can retry only the missing ones instead of reissuing the operation.
func (l *ledger) fanOutWrite(ctx context.Context, order *domain.Order) error {
	var succeeded, failed []string
	var firstErr error
	for _, path := range projectionPaths(order) {
		if err := l.store.Write(ctx, path, order); err != nil {
			l.logger.Error("projection write failed",
				zap.String("path", path),
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			failed = append(failed, path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = append(succeeded, path)
	}
	if firstErr == nil {
		return nil
	}
	if len(succeeded) == 0 {
		return fmt.Errorf("failed to write order: %w", firstErr)
	}
	return &store.PartialWriteError{Succeeded: succeeded, Failed: failed, Err: firstErr}
}
