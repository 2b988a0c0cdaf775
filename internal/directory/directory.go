package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"dealerlink/internal/domain"
	"dealerlink/internal/notify"
	"dealerlink/internal/store"

	"github.com/google/uuid"
)

const connectionsRoot = "connections"

// DealerLookup resolves dealer accounts by their published phone number or
// generated connect key. Lookups only match accounts with the dealer role.
type DealerLookup interface {
	FindDealerByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindDealerByKey(ctx context.Context, key string) (*domain.User, error)
}

// Service maintains the retailer→dealer connection, at most one per
// retailer. Disconnecting never touches existing orders.
type Service interface {
	// Connect resolves the dealer by 10-digit phone or 7-character connect
	// key and replaces any prior connection for the retailer.
	Connect(ctx context.Context, retailerID uuid.UUID, phoneOrKey string) (*domain.DealerConnection, error)

	// Disconnect is idempotent.
	Disconnect(ctx context.Context, retailerID uuid.UUID) error

	Get(ctx context.Context, retailerID uuid.UUID) (*domain.DealerConnection, error)
}

type service struct {
	store    store.Store
	dealers  DealerLookup
	notifier notify.Notifier
}

// NewService creates the connection directory.
func NewService(st store.Store, dealers DealerLookup, notifier notify.Notifier) Service {
	return &service{store: st, dealers: dealers, notifier: notifier}
}

func connectionPath(retailerID uuid.UUID) string {
	return store.Join(connectionsRoot, retailerID.String())
}

func isPhone(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (s *service) Connect(ctx context.Context, retailerID uuid.UUID, phoneOrKey string) (*domain.DealerConnection, error) {
	identifier := strings.TrimSpace(phoneOrKey)
	if identifier == "" {
		return nil, fmt.Errorf("dealer phone or key is required: %w", domain.ErrValidation)
	}

	var dealer *domain.User
	var err error
	if isPhone(identifier) {
		dealer, err = s.dealers.FindDealerByPhone(ctx, identifier)
	} else {
		dealer, err = s.dealers.FindDealerByKey(ctx, strings.ToUpper(identifier))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up dealer: %w", err)
	}

	connection := &domain.DealerConnection{
		RetailerID:  retailerID,
		DealerID:    dealer.ID,
		DealerName:  dealer.Name,
		DealerPhone: dealer.Phone,
		ConnectedAt: time.Now().UTC(),
	}

	// A plain write replaces whatever connection existed before.
	if err := s.store.Write(ctx, connectionPath(retailerID), connection); err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}

	s.notifier.Publish(notify.Event{
		Kind:    notify.KindDealerConnected,
		Message: "connected to dealer",
		Fields: map[string]interface{}{
			"retailer_id": retailerID.String(),
			"dealer_id":   dealer.ID.String(),
			"dealer_name": dealer.Name,
		},
	})
	return connection, nil
}

func (s *service) Disconnect(ctx context.Context, retailerID uuid.UUID) error {
	if err := s.store.Delete(ctx, connectionPath(retailerID)); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	s.notifier.Publish(notify.Event{
		Kind:    notify.KindDealerDisconnected,
		Message: "disconnected from dealer",
		Fields:  map[string]interface{}{"retailer_id": retailerID.String()},
	})
	return nil
}

func (s *service) Get(ctx context.Context, retailerID uuid.UUID) (*domain.DealerConnection, error) {
	snapshot, err := s.store.Read(ctx, connectionPath(retailerID))
	if err != nil {
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("retailer %s has no connected dealer: %w", retailerID, domain.ErrNotFound)
	}

	connection := &domain.DealerConnection{}
	if err := snapshot.Decode(connection); err != nil {
		return nil, fmt.Errorf("failed to decode connection: %w", err)
	}
	return connection, nil
}
