package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/engagement"
	orderssvc "github.com/aquaflowhq/aquaflow-backend/internal/orders"
	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// memoryRepo keeps the order triad in maps so checkout runs without a
// database behind it.
type memoryRepo struct {
	orders   map[uuid.UUID]*models.OrderRecord
	items    map[uuid.UUID][]*models.OrderItemRecord
	payments map[uuid.UUID]*models.PaymentTransaction
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   map[uuid.UUID]*models.OrderRecord{},
		items:    map[uuid.UUID][]*models.OrderItemRecord{},
		payments: map[uuid.UUID]*models.PaymentTransaction{},
	}
}

func (m *memoryRepo) InsertOrder(_ context.Context, record *models.OrderRecord) (persistence.WriteResult, error) {
	clone := *record
	m.orders[record.ID] = &clone
	return persistence.WriteResult{Stored: enums.StorageTierRemote}, nil
}

func (m *memoryRepo) InsertItems(_ context.Context, items []*models.OrderItemRecord) (persistence.WriteResult, error) {
	for _, item := range items {
		clone := *item
		m.items[item.OrderID] = append(m.items[item.OrderID], &clone)
	}
	return persistence.WriteResult{Stored: enums.StorageTierRemote}, nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, payment *models.PaymentTransaction) (persistence.WriteResult, error) {
	clone := *payment
	m.payments[payment.OrderID] = &clone
	return persistence.WriteResult{Stored: enums.StorageTierRemote}, nil
}

func (m *memoryRepo) UpdateOrder(_ context.Context, id uuid.UUID, patch persistence.Patch) (persistence.WriteResult, error) {
	record, ok := m.orders[id]
	if !ok {
		return persistence.WriteResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if status, ok := patch["status"]; ok {
		record.Status = status.(enums.OrderStatus)
	}
	return persistence.WriteResult{Stored: enums.StorageTierRemote}, nil
}

func (m *memoryRepo) FindOrder(_ context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	record, ok := m.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return record, nil
}

func (m *memoryRepo) FindOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.OrderRecord, error) {
	var out []*models.OrderRecord
	for _, record := range m.orders {
		if record.CustomerID == customerID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memoryRepo) FindAllOrders(_ context.Context) ([]*models.OrderRecord, error) {
	var out []*models.OrderRecord
	for _, record := range m.orders {
		out = append(out, record)
	}
	return out, nil
}

func (m *memoryRepo) FindItemsByOrder(_ context.Context, orderID uuid.UUID) ([]*models.OrderItemRecord, error) {
	return m.items[orderID], nil
}

func (m *memoryRepo) FindPaymentByOrder(_ context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	payment, ok := m.payments[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
	}
	return payment, nil
}

func testOrdersService(t *testing.T, repo orderssvc.Repository) *orderssvc.Service {
	t.Helper()
	cfg := config.OrdersConfig{AutoCompleteAfter: 30 * time.Second, CardTestPrefix: "4242"}
	svc := orderssvc.NewService(cfg, repo, testLogger(), nil, nil)
	t.Cleanup(svc.Close)
	return svc
}

func testEngagementManager(t *testing.T, granter engagement.WaiverGranter) *engagement.Manager {
	t.Helper()
	cfg := config.EngagementConfig{Duration: 10 * time.Second, Tick: 100 * time.Millisecond}
	mgr := engagement.NewManager(cfg, testLogger(), nil, granter)
	t.Cleanup(mgr.Close)
	return mgr
}

func decodeOrder(t *testing.T, body []byte) orderssvc.Order {
	t.Helper()
	var envelope struct {
		Data orderssvc.Order `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return envelope.Data
}

func TestCheckoutCashClearsCart(t *testing.T) {
	carts := newTestCartService(t)
	orders := testOrdersService(t, newMemoryRepo())
	gates := testEngagementManager(t, carts)
	customerID := uuid.New()

	add := authedRequest(http.MethodPut, "/api/v1/cart/items", customerID, strings.NewReader(addItemBody(uuid.New(), 2, 1800)))
	CartAddItem(carts, testLogger())(httptest.NewRecorder(), add)

	body := `{"delivery_address": "Calle 5 #12, Col. Centro", "payment_method": "cash"}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", customerID, strings.NewReader(body))
	resp := httptest.NewRecorder()
	Checkout(carts, orders, gates, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	order := decodeOrder(t, resp.Body.Bytes())
	if order.Record.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending got %s", order.Record.Status)
	}
	if order.Record.TotalCents != 3600+599 {
		t.Fatalf("expected total 4199 got %d", order.Record.TotalCents)
	}

	get := authedRequest(http.MethodGet, "/api/v1/cart", customerID, nil)
	getResp := httptest.NewRecorder()
	CartGet(carts, testLogger())(getResp, get)
	view := decodeCartView(t, getResp.Body.Bytes())
	if len(view.Items) != 0 {
		t.Fatalf("cart should be cleared after checkout, has %d items", len(view.Items))
	}
}

func TestCheckoutDeclinedCardKeepsCart(t *testing.T) {
	carts := newTestCartService(t)
	orders := testOrdersService(t, newMemoryRepo())
	gates := testEngagementManager(t, carts)
	customerID := uuid.New()

	add := authedRequest(http.MethodPut, "/api/v1/cart/items", customerID, strings.NewReader(addItemBody(uuid.New(), 1, 2500)))
	CartAddItem(carts, testLogger())(httptest.NewRecorder(), add)

	body := `{"delivery_address": "Calle 5 #12", "payment_method": "card", "card_number": "4000 0000 0000 0002"}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", customerID, strings.NewReader(body))
	resp := httptest.NewRecorder()
	Checkout(carts, orders, gates, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	order := decodeOrder(t, resp.Body.Bytes())
	if order.Record.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected payment_failed got %s", order.Record.Status)
	}

	get := authedRequest(http.MethodGet, "/api/v1/cart", customerID, nil)
	getResp := httptest.NewRecorder()
	CartGet(carts, testLogger())(getResp, get)
	view := decodeCartView(t, getResp.Body.Bytes())
	if len(view.Items) != 1 {
		t.Fatalf("cart should survive a declined payment, has %d items", len(view.Items))
	}
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	carts := newTestCartService(t)
	orders := testOrdersService(t, newMemoryRepo())
	gates := testEngagementManager(t, carts)

	body := `{"delivery_address": "Calle 5 #12", "payment_method": "cash"}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", uuid.New(), strings.NewReader(body))
	resp := httptest.NewRecorder()
	Checkout(carts, orders, gates, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutRejectsMalformedCardNumber(t *testing.T) {
	carts := newTestCartService(t)
	orders := testOrdersService(t, newMemoryRepo())
	gates := testEngagementManager(t, carts)

	for name, body := range map[string]string{
		"missing":    `{"delivery_address": "Calle 5 #12", "payment_method": "card"}`,
		"not a card": `{"delivery_address": "Calle 5 #12", "payment_method": "card", "card_number": "1234"}`,
	} {
		req := authedRequest(http.MethodPost, "/api/v1/checkout", uuid.New(), strings.NewReader(body))
		resp := httptest.NewRecorder()
		Checkout(carts, orders, gates, testLogger())(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s card number: expected 400 got %d: %s", name, resp.Code, resp.Body.String())
		}
		if !strings.Contains(resp.Body.String(), "card_number") {
			t.Fatalf("%s card number: expected a card_number detail, got %s", name, resp.Body.String())
		}
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	carts := newTestCartService(t)
	orders := testOrdersService(t, newMemoryRepo())
	gates := testEngagementManager(t, carts)

	body := `{"delivery_address": "Calle 5 #12", "payment_method": "barter"}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", uuid.New(), strings.NewReader(body))
	resp := httptest.NewRecorder()
	Checkout(carts, orders, gates, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
