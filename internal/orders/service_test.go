package orders

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	apperrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type stubRepo struct {
	mu sync.Mutex

	orders   map[uuid.UUID]*models.OrderRecord
	items    []*models.OrderItemRecord
	payments []*models.PaymentTransaction

	tier enums.StorageTier

	failInsertOrder   bool
	failInsertItems   bool
	failInsertPayment bool

	insertCalls int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders: make(map[uuid.UUID]*models.OrderRecord),
		tier:   enums.StorageTierRemote,
	}
}

func (r *stubRepo) InsertOrder(_ context.Context, record *models.OrderRecord) (persistence.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failInsertOrder {
		return persistence.WriteResult{}, fmt.Errorf("order insert rejected")
	}
	clone := *record
	r.orders[record.ID] = &clone
	return persistence.WriteResult{Stored: r.tier}, nil
}

func (r *stubRepo) InsertItems(_ context.Context, items []*models.OrderItemRecord) (persistence.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failInsertItems {
		return persistence.WriteResult{}, fmt.Errorf("item insert rejected")
	}
	r.items = append(r.items, items...)
	return persistence.WriteResult{Stored: r.tier}, nil
}

func (r *stubRepo) InsertPayment(_ context.Context, payment *models.PaymentTransaction) (persistence.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failInsertPayment {
		return persistence.WriteResult{}, fmt.Errorf("payment insert rejected")
	}
	clone := *payment
	r.payments = append(r.payments, &clone)
	return persistence.WriteResult{Stored: r.tier}, nil
}

func (r *stubRepo) UpdateOrder(_ context.Context, id uuid.UUID, patch persistence.Patch) (persistence.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.orders[id]
	if !ok {
		return persistence.WriteResult{}, fmt.Errorf("order %s not stored", id)
	}
	if status, ok := patch["status"].(enums.OrderStatus); ok {
		record.Status = status
	}
	if at, ok := patch["updated_at"].(time.Time); ok {
		record.UpdatedAt = at
	}
	if at, ok := patch["completed_at"].(time.Time); ok {
		record.CompletedAt = &at
	}
	return persistence.WriteResult{Stored: r.tier}, nil
}

func (r *stubRepo) FindOrder(_ context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.orders[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "document not found")
	}
	clone := *record
	return &clone, nil
}

func (r *stubRepo) FindOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OrderRecord
	for _, record := range r.orders {
		if record.CustomerID == customerID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubRepo) FindAllOrders(_ context.Context) ([]*models.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OrderRecord
	for _, record := range r.orders {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubRepo) FindItemsByOrder(_ context.Context, orderID uuid.UUID) ([]*models.OrderItemRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OrderItemRecord
	for _, item := range r.items {
		if item.OrderID == orderID {
			clone := *item
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubRepo) FindPaymentByOrder(_ context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.OrderID == orderID {
			clone := *payment
			return &clone, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "payment transaction not found")
}

func (r *stubRepo) storedStatus(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.orders[id]
	if !ok {
		t.Fatalf("order %s not stored", id)
	}
	return record.Status
}

type capturedTimer struct {
	mu    sync.Mutex
	fires []func()
}

func (c *capturedTimer) afterFunc(_ time.Duration, f func()) *time.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fires = append(c.fires, f)
	return time.NewTimer(time.Hour)
}

func (c *capturedTimer) fireAll() {
	c.mu.Lock()
	fires := c.fires
	c.fires = nil
	c.mu.Unlock()
	for _, f := range fires {
		f()
	}
}

func testOrdersConfig() config.OrdersConfig {
	return config.OrdersConfig{AutoCompleteAfter: 30 * time.Second, CardTestPrefix: "4242"}
}

func newTestServiceWithRepo(repo Repository) (*Service, *capturedTimer) {
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc := NewService(testOrdersConfig(), repo, log, nil, nil)
	timer := &capturedTimer{}
	svc.afterFunc = timer.afterFunc
	return svc, timer
}

func snapshotInput(method enums.PaymentMethod, cardNumber string) CreateOrderInput {
	items := []cart.LineItem{{
		ID:            uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   "19L bottle",
		VendorID:      uuid.New(),
		VendorName:    "Blue Springs",
		LitersPerUnit: decimal.NewFromInt(19),
		UnitCents:     1200,
		Amount:        2,
	}}
	return CreateOrderInput{
		CustomerID:      uuid.New(),
		CustomerName:    "Dana",
		Items:           items,
		Summary:         cart.Summary{SubtotalCents: 2400, DeliveryCents: 599, TotalCents: 2999, ItemCount: 2},
		DeliveryAddress: "12 Harbor St",
		PaymentMethod:   method,
		CardNumber:      cardNumber,
	}
}

func TestCreateOrderEmptyCartFailsBeforePersistence(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)

	input := snapshotInput(enums.PaymentMethodCash, "")
	input.Items = nil

	_, err := svc.CreateOrder(context.Background(), input)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if repo.insertCalls != 0 {
		t.Fatalf("validation failure must not touch persistence, saw %d calls", repo.insertCalls)
	}
}

func TestCreateOrderRequiresAddress(t *testing.T) {
	svc, _ := newTestServiceWithRepo(newStubRepo())

	input := snapshotInput(enums.PaymentMethodCash, "")
	input.DeliveryAddress = ""

	_, err := svc.CreateOrder(context.Background(), input)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateOrderCashStartsPendingWithWatchdog(t *testing.T) {
	repo := newStubRepo()
	svc, timer := newTestServiceWithRepo(repo)

	order, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCash, ""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Record.Status != enums.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Record.Status)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("cash payment should record completed, got %+v", order.Payment)
	}

	timer.mu.Lock()
	armed := len(timer.fires)
	timer.mu.Unlock()
	if armed != 1 {
		t.Fatalf("watchdogs armed = %d, want 1", armed)
	}
}

func TestCreateOrderTestCardIsAccepted(t *testing.T) {
	repo := newStubRepo()
	svc, timer := newTestServiceWithRepo(repo)

	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	order, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCard, "4242 4242 4242 4242"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.Record.Status != enums.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", order.Record.Status)
	}
	if order.Payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", order.Payment.Status)
	}
	if want := fmt.Sprintf("tr_%d", fixed.UnixMilli()); order.Payment.TransactionID != want {
		t.Fatalf("transaction id = %s, want %s", order.Payment.TransactionID, want)
	}
	if order.Payment.CardLast4 != "4242" {
		t.Fatalf("card last4 = %s", order.Payment.CardLast4)
	}

	timer.mu.Lock()
	armed := len(timer.fires)
	timer.mu.Unlock()
	if armed != 0 {
		t.Fatal("processing orders must not arm the pending watchdog")
	}
}

func TestCreateOrderOtherCardFailsPayment(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)

	order, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCard, "5555555555554444"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.Record.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("status = %s, want payment_failed", order.Record.Status)
	}
	if order.Payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s, want failed", order.Payment.Status)
	}
	if order.Payment.FailureReason == "" {
		t.Fatal("declined payment should carry a failure reason")
	}
	if order.Payment.CardLast4 != "4444" {
		t.Fatalf("card last4 = %s, want 4444", order.Payment.CardLast4)
	}
}

func TestCreateOrderCardRequiresNumber(t *testing.T) {
	svc, _ := newTestServiceWithRepo(newStubRepo())

	_, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCard, " - "))
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestItemInsertFailureCompensatesToCancelled(t *testing.T) {
	repo := newStubRepo()
	repo.failInsertItems = true
	svc, _ := newTestServiceWithRepo(repo)

	_, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCash, ""))
	if !apperrors.HasCode(err, apperrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}

	repo.mu.Lock()
	var status enums.OrderStatus
	for _, record := range repo.orders {
		status = record.Status
	}
	repo.mu.Unlock()
	if status != enums.OrderStatusCancelled {
		t.Fatalf("compensated status = %s, want cancelled", status)
	}
}

func TestPaymentInsertFailureCompensatesToPaymentFailed(t *testing.T) {
	repo := newStubRepo()
	repo.failInsertPayment = true
	svc, _ := newTestServiceWithRepo(repo)

	_, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCash, ""))
	if !apperrors.HasCode(err, apperrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}

	repo.mu.Lock()
	var status enums.OrderStatus
	for _, record := range repo.orders {
		status = record.Status
	}
	repo.mu.Unlock()
	if status != enums.OrderStatusPaymentFailed {
		t.Fatalf("compensated status = %s, want payment_failed", status)
	}
}

func TestCreateOrderReportsDegradedTier(t *testing.T) {
	repo := newStubRepo()
	repo.tier = enums.StorageTierLocal
	svc, _ := newTestServiceWithRepo(repo)

	order, err := svc.CreateOrder(context.Background(), snapshotInput(enums.PaymentMethodCash, ""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.StoredIn != enums.StorageTierLocal {
		t.Fatalf("stored in %s, want local", order.StoredIn)
	}
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	repo := newStubRepo()
	svc, timer := newTestServiceWithRepo(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, snapshotInput(enums.PaymentMethodCash, ""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	timer.fireAll() // watchdog completes the pending order

	if repo.storedStatus(t, order.Record.ID) != enums.OrderStatusCompleted {
		t.Fatal("watchdog should have completed the order")
	}

	_, err = svc.UpdateOrderStatus(ctx, order.Record.ID, enums.OrderStatusDelivering)
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestUpdateOrderStatusRejectsPendingToProcessing(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, snapshotInput(enums.PaymentMethodCash, ""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// Processing is only ever an initial status for accepted card
	// payments; a pending cash order cannot move there.
	_, err = svc.UpdateOrderStatus(ctx, order.Record.ID, enums.OrderStatusProcessing)
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
	if got := repo.storedStatus(t, order.Record.ID); got != enums.OrderStatusPending {
		t.Fatalf("status = %s, want pending untouched", got)
	}
}

func TestWatchdogDoesNotOverwriteEarlierTransition(t *testing.T) {
	repo := newStubRepo()
	svc, timer := newTestServiceWithRepo(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, snapshotInput(enums.PaymentMethodCash, ""))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := svc.UpdateOrderStatus(ctx, order.Record.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	// Even if the timer callback still fires, the re-check must leave
	// the cancelled order alone.
	timer.fireAll()

	if got := repo.storedStatus(t, order.Record.ID); got != enums.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled to stand", got)
	}
}

func TestUpdateOrderStatusWalksDeliveryPath(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, snapshotInput(enums.PaymentMethodCard, "4242424242424242"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	for _, next := range []enums.OrderStatus{enums.OrderStatusDelivering, enums.OrderStatusCompleted} {
		updated, err := svc.UpdateOrderStatus(ctx, order.Record.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Record.Status != next {
			t.Fatalf("status = %s, want %s", updated.Record.Status, next)
		}
	}

	final, err := svc.GetOrder(ctx, order.Record.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if final.Record.CompletedAt == nil {
		t.Fatal("completed order should carry completed_at")
	}
}

func TestGetOrdersByVendorMatchesLineItems(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)
	ctx := context.Background()

	mine := snapshotInput(enums.PaymentMethodCash, "")
	vendorID := mine.Items[0].VendorID
	other := snapshotInput(enums.PaymentMethodCash, "")

	created, err := svc.CreateOrder(ctx, mine)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, other); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := svc.GetOrdersByVendor(ctx, vendorID)
	if err != nil {
		t.Fatalf("GetOrdersByVendor: %v", err)
	}
	if len(got) != 1 || got[0].Record.ID != created.Record.ID {
		t.Fatalf("vendor filter returned wrong orders: %d", len(got))
	}
}

func TestGetOrdersByCustomer(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestServiceWithRepo(repo)
	ctx := context.Background()

	input := snapshotInput(enums.PaymentMethodCash, "")
	created, err := svc.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, snapshotInput(enums.PaymentMethodCash, "")); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := svc.GetOrdersByCustomer(ctx, input.CustomerID)
	if err != nil {
		t.Fatalf("GetOrdersByCustomer: %v", err)
	}
	if len(got) != 1 || got[0].Record.ID != created.Record.ID {
		t.Fatalf("customer filter returned wrong orders: %d", len(got))
	}
	if len(got[0].Items) != 1 {
		t.Fatalf("order items = %d, want 1", len(got[0].Items))
	}
	if got[0].Payment == nil {
		t.Fatal("order should hydrate its payment row")
	}
}

func TestStripSeparators(t *testing.T) {
	if got := stripSeparators("4242-4242 4242.4242"); got != "4242424242424242" {
		t.Fatalf("stripSeparators = %s", got)
	}
}
