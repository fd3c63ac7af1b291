package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	cartsvc "github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCartConfig() config.CartConfig {
	return config.CartConfig{
		DeliveryFeeCents:           599,
		FreeDeliveryThresholdCents: 5000,
		EngagementWaiverEnabled:    true,
	}
}

func newTestCartService(t *testing.T) *cartsvc.Service {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return cartsvc.NewService(testCartConfig(), store, testLogger(), nil)
}

func authedRequest(method, target string, customerID uuid.UUID, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithCustomerID(req.Context(), customerID.String())
	ctx = middleware.WithCustomerName(ctx, "Test Customer")
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func addItemBody(productID uuid.UUID, amount int, unitCents int64) string {
	return fmt.Sprintf(`{
		"product_id": %q,
		"product_name": "Garrafon 20L",
		"vendor_id": %q,
		"vendor_name": "Aguas del Valle",
		"liters_per_unit": "20",
		"unit_cents": %d,
		"amount": %d
	}`, productID, uuid.New(), unitCents, amount)
}

func decodeCartView(t *testing.T, body []byte) cartsvc.View {
	t.Helper()
	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode cart view: %v", err)
	}
	return envelope.Data
}

func TestCartAddItemReturnsPricedView(t *testing.T) {
	svc := newTestCartService(t)
	customerID := uuid.New()

	req := authedRequest(http.MethodPut, "/api/v1/cart/items", customerID, strings.NewReader(addItemBody(uuid.New(), 2, 2500)))
	resp := httptest.NewRecorder()
	CartAddItem(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	view := decodeCartView(t, resp.Body.Bytes())
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 line got %d", len(view.Items))
	}
	if view.Summary.SubtotalCents != 5000 {
		t.Fatalf("expected subtotal 5000 got %d", view.Summary.SubtotalCents)
	}
	if !view.Summary.FeeWaived || view.Summary.DeliveryCents != 0 {
		t.Fatalf("expected fee waived at threshold, got waived=%v fee=%d", view.Summary.FeeWaived, view.Summary.DeliveryCents)
	}
}

func TestCartAddItemRejectsUnknownFields(t *testing.T) {
	svc := newTestCartService(t)

	req := authedRequest(http.MethodPut, "/api/v1/cart/items", uuid.New(), strings.NewReader(`{"bogus": true}`))
	resp := httptest.NewRecorder()
	CartAddItem(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemRejectsZeroAmount(t *testing.T) {
	svc := newTestCartService(t)

	req := authedRequest(http.MethodPut, "/api/v1/cart/items", uuid.New(), strings.NewReader(addItemBody(uuid.New(), 0, 2500)))
	resp := httptest.NewRecorder()
	CartAddItem(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateAmountToZeroRemovesLine(t *testing.T) {
	svc := newTestCartService(t)
	customerID := uuid.New()

	req := authedRequest(http.MethodPut, "/api/v1/cart/items", customerID, strings.NewReader(addItemBody(uuid.New(), 2, 1800)))
	resp := httptest.NewRecorder()
	CartAddItem(svc, testLogger())(resp, req)
	view := decodeCartView(t, resp.Body.Bytes())
	itemID := view.Items[0].ID

	patch := authedRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), customerID, strings.NewReader(`{"amount": 0}`))
	patch = withURLParam(patch, "itemID", itemID.String())
	patchResp := httptest.NewRecorder()
	CartUpdateAmount(svc, testLogger())(patchResp, patch)

	if patchResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", patchResp.Code, patchResp.Body.String())
	}
	updated := decodeCartView(t, patchResp.Body.Bytes())
	if len(updated.Items) != 0 {
		t.Fatalf("expected empty cart got %d items", len(updated.Items))
	}
}

func TestCartRemoveMissingItemIsNoOp(t *testing.T) {
	svc := newTestCartService(t)
	customerID := uuid.New()
	itemID := uuid.New()

	req := authedRequest(http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), customerID, nil)
	req = withURLParam(req, "itemID", itemID.String())
	resp := httptest.NewRecorder()
	CartRemoveItem(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCartGetRequiresCustomerContext(t *testing.T) {
	svc := newTestCartService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	CartGet(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartClearEmptiesCart(t *testing.T) {
	svc := newTestCartService(t)
	customerID := uuid.New()

	add := authedRequest(http.MethodPut, "/api/v1/cart/items", customerID, strings.NewReader(addItemBody(uuid.New(), 1, 2500)))
	CartAddItem(svc, testLogger())(httptest.NewRecorder(), add)

	clear := authedRequest(http.MethodDelete, "/api/v1/cart", customerID, nil)
	clearResp := httptest.NewRecorder()
	CartClear(svc, testLogger())(clearResp, clear)
	if clearResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", clearResp.Code)
	}

	get := authedRequest(http.MethodGet, "/api/v1/cart", customerID, nil)
	getResp := httptest.NewRecorder()
	CartGet(svc, testLogger())(getResp, get)
	view := decodeCartView(t, getResp.Body.Bytes())
	if len(view.Items) != 0 {
		t.Fatalf("expected cleared cart got %d items", len(view.Items))
	}
}
