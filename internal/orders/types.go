package orders

import (
	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// CreateOrderInput is a checkout request carrying the cart snapshot.
// Items and summary are taken as-is and frozen into the order; the
// cart itself is cleared by the caller only after creation succeeds.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	CustomerName    string
	Items           []cart.LineItem
	Summary         cart.Summary
	DeliveryAddress string
	DeliveryNotes   string
	PaymentMethod   enums.PaymentMethod

	// CardNumber is only consulted for card payments. Format validation
	// happens at the API boundary; this layer runs the payment check.
	CardNumber string
}

// Order is the in-memory join of the persisted record triad.
type Order struct {
	Record  models.OrderRecord         `json:"order"`
	Items   []models.OrderItemRecord   `json:"items"`
	Payment *models.PaymentTransaction `json:"payment,omitempty"`

	// StoredIn reports the tier the order row landed in, so callers can
	// surface degraded-mode checkouts.
	StoredIn enums.StorageTier `json:"stored_in"`
}

// PaymentOutcome is the result of the simulated payment check.
type PaymentOutcome struct {
	Accepted      bool
	TransactionID string
	CardLast4     string
	FailureReason string
}
