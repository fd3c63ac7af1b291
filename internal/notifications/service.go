// Package notifications records customer-facing events raised by cart
// and order activity, for the clients' notification feed.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type Service struct {
	adapter *persistence.Adapter
	log     *logger.Logger

	now func() time.Time
}

func NewService(adapter *persistence.Adapter, log *logger.Logger) *Service {
	return &Service{adapter: adapter, log: log, now: time.Now}
}

// Notify records one event. Failures are logged, not surfaced: a lost
// notification must never fail the operation that raised it.
func (s *Service) Notify(ctx context.Context, customerID uuid.UUID, kind, title, body string, orderID *uuid.UUID) {
	record := models.NotificationRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       kind,
		Title:      title,
		Body:       body,
		OrderID:    orderID,
		CreatedAt:  s.now(),
	}

	if _, err := s.adapter.Insert(ctx, &record); err != nil {
		s.log.Error(ctx, fmt.Sprintf("recording %s notification", kind), err)
	}
}

// List returns the customer's notifications, newest first.
func (s *Service) List(ctx context.Context, customerID uuid.UUID) ([]*models.NotificationRecord, error) {
	return persistence.FindAll[*models.NotificationRecord](ctx, s.adapter, persistence.FindOptions{
		Filters: []persistence.Filter{{Field: "customer_id", Value: customerID}},
		OrderBy: "created_at",
		Desc:    true,
	})
}

// MarkRead flags one notification as read. The customer check prevents
// marking another customer's entries.
func (s *Service) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error {
	record, err := persistence.FindOne[*models.NotificationRecord](ctx, s.adapter,
		persistence.Filter{Field: "id", Value: notificationID})
	if err != nil {
		return err
	}
	if record.CustomerID != customerID {
		return errors.New(errors.CodeForbidden, "notification belongs to another customer")
	}
	if record.Read {
		return nil
	}

	_, err = s.adapter.Update(ctx, record.TableName(), notificationID, persistence.Patch{"read": true})
	return err
}
