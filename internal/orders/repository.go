package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// Repository is the slice of the persistence layer the order service
// needs. The adapter-backed implementation is the only production one;
// tests substitute stubs.
type Repository interface {
	InsertOrder(ctx context.Context, record *models.OrderRecord) (persistence.WriteResult, error)
	InsertItems(ctx context.Context, items []*models.OrderItemRecord) (persistence.WriteResult, error)
	InsertPayment(ctx context.Context, payment *models.PaymentTransaction) (persistence.WriteResult, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, patch persistence.Patch) (persistence.WriteResult, error)

	FindOrder(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error)
	FindOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.OrderRecord, error)
	FindAllOrders(ctx context.Context) ([]*models.OrderRecord, error)
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItemRecord, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
}

type adapterRepository struct {
	adapter *persistence.Adapter
}

// NewRepository wraps the dual-tier adapter in the Repository interface.
func NewRepository(adapter *persistence.Adapter) Repository {
	return &adapterRepository{adapter: adapter}
}

func (r *adapterRepository) InsertOrder(ctx context.Context, record *models.OrderRecord) (persistence.WriteResult, error) {
	return r.adapter.Insert(ctx, record)
}

func (r *adapterRepository) InsertItems(ctx context.Context, items []*models.OrderItemRecord) (persistence.WriteResult, error) {
	docs := make([]persistence.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, item)
	}
	return r.adapter.InsertMany(ctx, docs)
}

func (r *adapterRepository) InsertPayment(ctx context.Context, payment *models.PaymentTransaction) (persistence.WriteResult, error) {
	return r.adapter.Insert(ctx, payment)
}

func (r *adapterRepository) UpdateOrder(ctx context.Context, id uuid.UUID, patch persistence.Patch) (persistence.WriteResult, error) {
	return r.adapter.Update(ctx, (&models.OrderRecord{}).TableName(), id, patch)
}

func (r *adapterRepository) FindOrder(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	return persistence.FindOne[*models.OrderRecord](ctx, r.adapter,
		persistence.Filter{Field: "id", Value: id})
}

func (r *adapterRepository) FindOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.OrderRecord, error) {
	return persistence.FindAll[*models.OrderRecord](ctx, r.adapter, persistence.FindOptions{
		Filters: []persistence.Filter{{Field: "customer_id", Value: customerID}},
		OrderBy: "placed_at",
		Desc:    true,
	})
}

func (r *adapterRepository) FindAllOrders(ctx context.Context) ([]*models.OrderRecord, error) {
	return persistence.FindAll[*models.OrderRecord](ctx, r.adapter, persistence.FindOptions{
		OrderBy: "placed_at",
		Desc:    true,
	})
}

func (r *adapterRepository) FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItemRecord, error) {
	return persistence.FindAll[*models.OrderItemRecord](ctx, r.adapter, persistence.FindOptions{
		Filters: []persistence.Filter{{Field: "order_id", Value: orderID}},
	})
}

func (r *adapterRepository) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	payments, err := persistence.FindAll[*models.PaymentTransaction](ctx, r.adapter, persistence.FindOptions{
		Filters: []persistence.Filter{{Field: "order_id", Value: orderID}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, errors.New(errors.CodeNotFound, "payment transaction not found")
	}
	return payments[0], nil
}
