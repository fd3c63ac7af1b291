// Package orders creates orders from cart snapshots and walks them
// through their status lifecycle. The order/item/payment triad spans
// three collections with no cross-collection transaction, so creation
// compensates by hand when a later write fails.
package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
)

// Notifier receives customer-facing order events.
type Notifier interface {
	Notify(ctx context.Context, customerID uuid.UUID, kind, title, body string, orderID *uuid.UUID)
}

type Service struct {
	cfg      config.OrdersConfig
	repo     Repository
	log      *logger.Logger
	metrics  *metrics.Metrics
	notifier Notifier

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu        sync.Mutex
	watchdogs map[uuid.UUID]*time.Timer
}

func NewService(cfg config.OrdersConfig, repo Repository, log *logger.Logger, m *metrics.Metrics, notifier Notifier) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		log:       log,
		metrics:   m,
		notifier:  notifier,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		watchdogs: make(map[uuid.UUID]*time.Timer),
	}
}

// CreateOrder freezes the cart snapshot into an order and persists the
// record triad. The caller sees either a consistent success or an order
// already moved to a terminal compensation status plus the error, never
// a dangling order with missing rows.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, errors.New(errors.CodeValidation, "cannot checkout an empty cart")
	}
	if input.DeliveryAddress == "" {
		return nil, errors.New(errors.CodeValidation, "delivery address is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown payment method")
	}
	if input.PaymentMethod == enums.PaymentMethodCard && stripSeparators(input.CardNumber) == "" {
		return nil, errors.New(errors.CodeValidation, "card number is required for card payments")
	}

	now := s.now()
	outcome := s.simulatePayment(input.PaymentMethod, input.CardNumber, now)

	status := enums.OrderStatusPending
	if input.PaymentMethod == enums.PaymentMethodCard {
		if outcome.Accepted {
			status = enums.OrderStatusProcessing
		} else {
			status = enums.OrderStatusPaymentFailed
		}
	}

	record := models.OrderRecord{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		CustomerName:    input.CustomerName,
		Status:          status,
		SubtotalCents:   input.Summary.SubtotalCents,
		DeliveryCents:   input.Summary.DeliveryCents,
		TotalCents:      input.Summary.TotalCents,
		FeeWaived:       input.Summary.FeeWaived,
		PaymentMethod:   input.PaymentMethod,
		DeliveryAddress: input.DeliveryAddress,
		DeliveryNotes:   input.DeliveryNotes,
		PlacedAt:        now,
		UpdatedAt:       now,
	}

	ctx = s.log.WithOrderID(ctx, record.ID.String())

	res, err := s.repo.InsertOrder(ctx, &record)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "persisting order")
	}

	items := make([]*models.OrderItemRecord, 0, len(input.Items))
	for _, line := range input.Items {
		items = append(items, &models.OrderItemRecord{
			ID:            uuid.New(),
			OrderID:       record.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			VendorID:      line.VendorID,
			VendorName:    line.VendorName,
			LitersPerUnit: line.LitersPerUnit,
			UnitCents:     line.UnitCents,
			Amount:        line.Amount,
			LineCents:     line.LineCents(),
		})
	}

	itemRes, err := s.repo.InsertItems(ctx, items)
	if err != nil {
		return nil, s.compensate(ctx, &record, enums.OrderStatusCancelled, err, "persisting order items")
	}
	if itemRes.Stored == enums.StorageTierLocal {
		res.Stored = enums.StorageTierLocal
	}

	paymentStatus := enums.PaymentStatusCompleted
	if !outcome.Accepted {
		paymentStatus = enums.PaymentStatusFailed
	}
	payment := models.PaymentTransaction{
		ID:            uuid.New(),
		TransactionID: outcome.TransactionID,
		OrderID:       record.ID,
		CustomerID:    input.CustomerID,
		Method:        input.PaymentMethod,
		Status:        paymentStatus,
		AmountCents:   input.Summary.TotalCents,
		CardLast4:     outcome.CardLast4,
		FailureReason: outcome.FailureReason,
	}
	if _, err := s.repo.InsertPayment(ctx, &payment); err != nil {
		return nil, s.compensate(ctx, &record, enums.OrderStatusPaymentFailed, err, "persisting payment transaction")
	}

	s.metrics.OrderCreated(status.String())
	s.metrics.PaymentResult(input.PaymentMethod.String(), paymentStatus.String())

	if status == enums.OrderStatusPending {
		s.startWatchdog(record.ID)
	}

	if s.notifier != nil {
		orderID := record.ID
		switch status {
		case enums.OrderStatusPaymentFailed:
			s.notifier.Notify(ctx, input.CustomerID, "order_payment_failed", "Payment failed",
				"Your card was declined. The order was not charged.", &orderID)
		default:
			s.notifier.Notify(ctx, input.CustomerID, "order_placed", "Order placed",
				fmt.Sprintf("Your water delivery order is %s.", status), &orderID)
		}
	}

	s.log.Info(ctx, fmt.Sprintf("order created with status %s in %s store", status, res.Stored))

	frozen := make([]models.OrderItemRecord, 0, len(items))
	for _, item := range items {
		frozen = append(frozen, *item)
	}
	return &Order{Record: record, Items: frozen, Payment: &payment, StoredIn: res.Stored}, nil
}

// compensate moves an already-created order into a terminal status after
// a later creation step failed, then surfaces the original error.
func (s *Service) compensate(ctx context.Context, record *models.OrderRecord, to enums.OrderStatus, cause error, step string) error {
	s.metrics.CompensationRun()
	s.log.Error(ctx, fmt.Sprintf("%s failed, compensating order to %s", step, to), cause)

	_, compErr := s.repo.UpdateOrder(ctx, record.ID, persistence.Patch{
		"status":     to,
		"updated_at": s.now(),
	})
	if compErr != nil {
		cause = multierr.Append(cause, fmt.Errorf("compensation update failed: %w", compErr))
	}
	return errors.Wrap(errors.CodeDependency, cause, step+" failed")
}

// UpdateOrderStatus applies a transition from the status graph. Illegal
// transitions are state conflicts. A remote write failure degrades to a
// local-only update rather than blocking the caller.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus enums.OrderStatus) (*Order, error) {
	if !newStatus.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown order status")
	}

	ctx = s.log.WithOrderID(ctx, orderID.String())

	record, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !record.Status.CanTransitionTo(newStatus) {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("cannot transition order from %s to %s", record.Status, newStatus))
	}

	if record.Status == enums.OrderStatusPending {
		s.cancelWatchdog(orderID)
	}

	now := s.now()
	patch := persistence.Patch{
		"status":     newStatus,
		"updated_at": now,
	}
	if newStatus == enums.OrderStatusCompleted {
		patch["completed_at"] = now
	}

	res, err := s.repo.UpdateOrder(ctx, orderID, patch)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "persisting status change")
	}
	if res.Stored == enums.StorageTierLocal {
		s.log.Warn(ctx, fmt.Sprintf("status change to %s stored locally only", newStatus))
	}

	s.metrics.OrderTransition(record.Status.String(), newStatus.String())

	prev := record.Status
	record.Status = newStatus
	record.UpdatedAt = now
	if newStatus == enums.OrderStatusCompleted {
		record.CompletedAt = &now
	}

	if s.notifier != nil {
		id := orderID
		s.notifier.Notify(ctx, record.CustomerID, "order_status", "Order update",
			fmt.Sprintf("Your order moved from %s to %s.", prev, newStatus), &id)
	}

	return s.hydrate(ctx, record, res.Stored)
}

// GetOrder returns one order with its items and payment row.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	record, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, record, enums.StorageTierRemote)
}

// GetOrdersByCustomer lists the customer's orders, newest first.
func (s *Service) GetOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error) {
	records, err := s.repo.FindOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.hydrateAll(ctx, records)
}

// GetOrdersByVendor lists orders containing at least one line from the
// vendor, newest first.
func (s *Service) GetOrdersByVendor(ctx context.Context, vendorID uuid.UUID) ([]*Order, error) {
	records, err := s.repo.FindAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := s.hydrateAll(ctx, records)
	if err != nil {
		return nil, err
	}

	matched := make([]*Order, 0, len(orders))
	for _, order := range orders {
		for _, item := range order.Items {
			if item.VendorID == vendorID {
				matched = append(matched, order)
				break
			}
		}
	}
	return matched, nil
}

// LoadOrders returns the full merged order set, newest first.
func (s *Service) LoadOrders(ctx context.Context) ([]*Order, error) {
	records, err := s.repo.FindAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return s.hydrateAll(ctx, records)
}

func (s *Service) hydrate(ctx context.Context, record *models.OrderRecord, tier enums.StorageTier) (*Order, error) {
	itemPtrs, err := s.repo.FindItemsByOrder(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	items := make([]models.OrderItemRecord, 0, len(itemPtrs))
	for _, item := range itemPtrs {
		items = append(items, *item)
	}

	order := &Order{Record: *record, Items: items, StoredIn: tier}

	payment, err := s.repo.FindPaymentByOrder(ctx, record.ID)
	if err != nil {
		if !errors.HasCode(err, errors.CodeNotFound) {
			return nil, err
		}
	} else {
		order.Payment = payment
	}
	return order, nil
}

func (s *Service) hydrateAll(ctx context.Context, records []*models.OrderRecord) ([]*Order, error) {
	orders := make([]*Order, 0, len(records))
	for _, record := range records {
		order, err := s.hydrate(ctx, record, enums.StorageTierRemote)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// startWatchdog arms the one-shot auto-completion countdown for a
// pending order. The timer re-checks status on expiry so a transition
// that won the race is never overwritten.
func (s *Service) startWatchdog(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchdogs[orderID]; exists {
		return
	}
	s.watchdogs[orderID] = s.afterFunc(s.cfg.AutoCompleteAfter, func() {
		s.watchdogFired(orderID)
	})
}

func (s *Service) watchdogFired(orderID uuid.UUID) {
	s.mu.Lock()
	delete(s.watchdogs, orderID)
	s.mu.Unlock()

	ctx := s.log.WithOrderID(context.Background(), orderID.String())

	record, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		s.log.Error(ctx, "watchdog could not load order", err)
		return
	}
	if record.Status != enums.OrderStatusPending {
		return
	}

	if _, err := s.UpdateOrderStatus(ctx, orderID, enums.OrderStatusCompleted); err != nil {
		s.log.Error(ctx, "watchdog auto-completion failed", err)
		return
	}
	s.metrics.WatchdogCompletion()
	s.log.Info(ctx, "order auto-completed by watchdog")
}

func (s *Service) cancelWatchdog(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.watchdogs[orderID]; ok {
		timer.Stop()
		delete(s.watchdogs, orderID)
	}
}

// Close stops every armed watchdog. Called on shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.watchdogs {
		timer.Stop()
		delete(s.watchdogs, id)
	}
}
