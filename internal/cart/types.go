package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one product's aggregated entry in a customer's cart. ID is
// assigned when the line is first created and stays stable for the
// cart's lifetime; price and image are snapshotted at add time.
type LineItem struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	VendorID      uuid.UUID       `json:"vendor_id"`
	VendorName    string          `json:"vendor_name"`
	LitersPerUnit decimal.Decimal `json:"liters_per_unit"`
	UnitCents     int64           `json:"unit_cents"`
	Amount        int             `json:"amount"`
	ImageURL      string          `json:"image_url,omitempty"`
}

func (li LineItem) LineCents() int64 {
	return li.UnitCents * int64(li.Amount)
}

// Summary is the priced view of a cart. All money is integer cents.
// It is always recomputed from the current lines and waiver state.
type Summary struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DeliveryCents int64 `json:"delivery_cents"`
	TotalCents    int64 `json:"total_cents"`
	FeeWaived     bool  `json:"fee_waived"`
	ItemCount     int   `json:"item_count"`
}

// View is a cart with its computed summary, as returned to callers.
type View struct {
	Items   []LineItem `json:"items"`
	Summary Summary    `json:"summary"`
}

// snapshot is the persisted cart shape.
type snapshot struct {
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// waiverSnapshot records an earned fee waiver.
type waiverSnapshot struct {
	Waived    bool      `json:"waived"`
	GrantedAt time.Time `json:"granted_at"`
}
