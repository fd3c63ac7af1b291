// Package cart holds per-customer carts with cents-based pricing and the
// delivery-fee waiver rules. Carts live in the local snapshot store, the
// same place the legacy clients kept them, so an API restart loses nothing.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// Notifier receives customer-facing events raised by cart changes.
type Notifier interface {
	Notify(ctx context.Context, customerID uuid.UUID, kind, title, body string, orderID *uuid.UUID)
}

type Service struct {
	cfg      config.CartConfig
	store    *localstore.Store
	log      *logger.Logger
	notifier Notifier

	mu sync.Mutex

	now func() time.Time
}

func NewService(cfg config.CartConfig, store *localstore.Store, log *logger.Logger, notifier Notifier) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		log:      log,
		notifier: notifier,
		now:      time.Now,
	}
}

// Get returns the customer's cart with its summary. A customer with no
// snapshot gets an empty cart, not an error.
func (s *Service) Get(ctx context.Context, customerID uuid.UUID) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(ctx, customerID)
}

// AddItem merges item into the cart. Adding a product already present
// increments the existing line's amount and keeps its id; otherwise a
// new line is created with a fresh id.
func (s *Service) AddItem(ctx context.Context, customerID uuid.UUID, item LineItem) (View, error) {
	if item.Amount <= 0 {
		return View{}, errors.New(errors.CodeValidation, "amount must be positive")
	}
	if item.UnitCents < 0 {
		return View{}, errors.New(errors.CodeValidation, "unit price cannot be negative")
	}
	if item.ProductID == uuid.Nil {
		return View{}, errors.New(errors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadSnapshot(ctx, customerID)
	if err != nil {
		return View{}, err
	}

	merged := false
	for i := range snap.Items {
		if snap.Items[i].ProductID == item.ProductID {
			snap.Items[i].Amount += item.Amount
			merged = true
			break
		}
	}
	if !merged {
		item.ID = uuid.New()
		snap.Items = append(snap.Items, item)
	}

	if err := s.saveSnapshot(ctx, customerID, snap); err != nil {
		return View{}, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, customerID, "cart_item_added", "Added to cart",
			item.ProductName+" is in your cart.", nil)
	}
	return s.viewOf(ctx, customerID, snap)
}

// UpdateAmount sets a line's amount exactly. Zero or negative removes
// the line, matching RemoveItem.
func (s *Service) UpdateAmount(ctx context.Context, customerID, itemID uuid.UUID, amount int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadSnapshot(ctx, customerID)
	if err != nil {
		return View{}, err
	}

	idx := -1
	for i := range snap.Items {
		if snap.Items[i].ID == itemID {
			idx = i
			break
		}
	}

	switch {
	case idx < 0 && amount <= 0:
		// Removing an absent line is a no-op, same as RemoveItem.
		return s.viewOf(ctx, customerID, snap)
	case idx < 0:
		return View{}, errors.New(errors.CodeNotFound, "line item not in cart")
	case amount <= 0:
		snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
	default:
		snap.Items[idx].Amount = amount
	}

	if err := s.saveSnapshot(ctx, customerID, snap); err != nil {
		return View{}, err
	}
	return s.viewOf(ctx, customerID, snap)
}

// RemoveItem drops a line from the cart. Absent lines are ignored.
func (s *Service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (View, error) {
	return s.UpdateAmount(ctx, customerID, itemID, 0)
}

// Clear empties the cart and resets the waiver. Called by the customer
// directly and after a successful checkout.
func (s *Service) Clear(ctx context.Context, customerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, localstore.CartKey(customerID.String())); err != nil {
		return err
	}
	return s.store.Delete(ctx, localstore.WaiverKey(customerID.String()))
}

// GrantWaiver records an earned delivery-fee waiver. Idempotent: only the
// first grant reports true, repeats are no-ops.
func (s *Service) GrantWaiver(ctx context.Context, customerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing waiverSnapshot
	found, err := s.store.Load(ctx, localstore.WaiverKey(customerID.String()), &existing)
	if err != nil {
		return false, err
	}
	if found && existing.Waived {
		return false, nil
	}

	snap := waiverSnapshot{Waived: true, GrantedAt: s.now()}
	if err := s.store.Save(ctx, localstore.WaiverKey(customerID.String()), snap); err != nil {
		return false, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, customerID, "fee_waiver", "Delivery fee waived",
			"Your next delivery fee has been waived.", nil)
	}
	return true, nil
}

// RestoreFee revokes an earned waiver so the delivery fee applies again.
func (s *Service) RestoreFee(ctx context.Context, customerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, localstore.WaiverKey(customerID.String()))
}

// WaiverActive reports whether the customer holds an earned waiver.
func (s *Service) WaiverActive(ctx context.Context, customerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiverActive(ctx, customerID)
}

func (s *Service) waiverActive(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var snap waiverSnapshot
	found, err := s.store.Load(ctx, localstore.WaiverKey(customerID.String()), &snap)
	if err != nil {
		return false, err
	}
	return found && snap.Waived, nil
}

// Summarize prices a set of lines under the fee rules. The delivery fee
// drops when the subtotal clears the free-delivery threshold or the
// customer earned a waiver; the summary exposes only the net flag, not
// which rule zeroed the fee. An empty cart owes nothing.
func (s *Service) Summarize(items []LineItem, waiverEarned bool) Summary {
	var subtotal int64
	count := 0
	for _, item := range items {
		subtotal += item.LineCents()
		count += item.Amount
	}

	summary := Summary{SubtotalCents: subtotal, ItemCount: count}
	if len(items) == 0 {
		return summary
	}

	// A zero threshold disables the threshold rule entirely rather than
	// making every cart free.
	waived := s.cfg.FreeDeliveryThresholdCents > 0 && subtotal >= int64(s.cfg.FreeDeliveryThresholdCents)
	if s.cfg.EngagementWaiverEnabled && waiverEarned {
		waived = true
	}

	summary.FeeWaived = waived
	if !waived {
		summary.DeliveryCents = int64(s.cfg.DeliveryFeeCents)
	}
	summary.TotalCents = summary.SubtotalCents + summary.DeliveryCents
	return summary
}

func (s *Service) loadSnapshot(ctx context.Context, customerID uuid.UUID) (snapshot, error) {
	var snap snapshot
	if _, err := s.store.Load(ctx, localstore.CartKey(customerID.String()), &snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (s *Service) saveSnapshot(ctx context.Context, customerID uuid.UUID, snap snapshot) error {
	snap.UpdatedAt = s.now()
	return s.store.Save(ctx, localstore.CartKey(customerID.String()), snap)
}

func (s *Service) view(ctx context.Context, customerID uuid.UUID) (View, error) {
	snap, err := s.loadSnapshot(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	return s.viewOf(ctx, customerID, snap)
}

func (s *Service) viewOf(ctx context.Context, customerID uuid.UUID, snap snapshot) (View, error) {
	waived, err := s.waiverActive(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	items := snap.Items
	if items == nil {
		items = []LineItem{}
	}
	return View{Items: items, Summary: s.Summarize(items, waived)}, nil
}
