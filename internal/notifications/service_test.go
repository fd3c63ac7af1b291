package notifications

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	apperrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	adapter := persistence.NewAdapter(nil, local, log, nil)
	return NewService(adapter, log)
}

func TestNotifyAndList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	customer := uuid.New()

	orderID := uuid.New()
	svc.Notify(ctx, customer, "order_placed", "Order placed", "Your order is pending.", &orderID)
	svc.Notify(ctx, customer, "fee_waiver", "Delivery fee waived", "Nice.", nil)
	svc.Notify(ctx, uuid.New(), "order_placed", "Order placed", "Someone else's.", nil)

	list, err := svc.List(ctx, customer)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, n := range list {
		if n.CustomerID != customer {
			t.Fatalf("listed foreign notification: %+v", n)
		}
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	customer := uuid.New()

	svc.Notify(ctx, customer, "order_placed", "Order placed", "Pending.", nil)
	list, err := svc.List(ctx, customer)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list[0].Read {
		t.Fatal("fresh notification should be unread")
	}

	if err := svc.MarkRead(ctx, customer, list[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	list, err = svc.List(ctx, customer)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !list[0].Read {
		t.Fatal("notification should be read")
	}

	// Marking again is a no-op.
	if err := svc.MarkRead(ctx, customer, list[0].ID); err != nil {
		t.Fatalf("MarkRead repeat: %v", err)
	}
}

func TestMarkReadForeignNotification(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := uuid.New()

	svc.Notify(ctx, owner, "order_placed", "Order placed", "Pending.", nil)
	list, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	err = svc.MarkRead(ctx, uuid.New(), list[0].ID)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestMarkReadMissing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.MarkRead(ctx, uuid.New(), uuid.New())
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
