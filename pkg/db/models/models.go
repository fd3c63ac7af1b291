// Package models defines the rows persisted for the ordering core.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// OrderRecord is one row in full_orders, the order header.
type OrderRecord struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID           `gorm:"type:uuid;index" json:"customer_id"`
	CustomerName    string              `json:"customer_name"`
	Status          enums.OrderStatus   `gorm:"type:text;index" json:"status"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	DeliveryCents   int64               `json:"delivery_cents"`
	TotalCents      int64               `json:"total_cents"`
	FeeWaived       bool                `json:"fee_waived"`
	PaymentMethod   enums.PaymentMethod `gorm:"type:text" json:"payment_method"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliveryNotes   string              `json:"delivery_notes,omitempty"`
	PlacedAt        time.Time           `json:"placed_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// PendingSync is set on copies written to the local fallback while the
	// remote store is unreachable. Never persisted remotely.
	PendingSync bool `gorm:"-" json:"pending_sync,omitempty"`
}

func (o *OrderRecord) DocumentID() uuid.UUID { return o.ID }
func (*OrderRecord) TableName() string       { return "full_orders" }
func (o *OrderRecord) SetPendingSync(v bool) { o.PendingSync = v }

// OrderItemRecord is one row in order_items, a line of an order.
type OrderItemRecord struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid" json:"product_id"`
	ProductName   string          `json:"product_name"`
	VendorID      uuid.UUID       `gorm:"type:uuid;index" json:"vendor_id"`
	VendorName    string          `json:"vendor_name"`
	LitersPerUnit decimal.Decimal `gorm:"type:numeric(8,2)" json:"liters_per_unit"`
	UnitCents     int64           `json:"unit_cents"`
	Amount        int             `json:"amount"`
	LineCents     int64           `json:"line_cents"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`

	PendingSync bool `gorm:"-" json:"pending_sync,omitempty"`
}

func (i *OrderItemRecord) DocumentID() uuid.UUID { return i.ID }
func (*OrderItemRecord) TableName() string       { return "order_items" }
func (i *OrderItemRecord) SetPendingSync(v bool) { i.PendingSync = v }

// PaymentTransaction is one row in payment_transactions.
type PaymentTransaction struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID string              `gorm:"uniqueIndex" json:"transaction_id"`
	OrderID       uuid.UUID           `gorm:"type:uuid;index" json:"order_id"`
	CustomerID    uuid.UUID           `gorm:"type:uuid;index" json:"customer_id"`
	Method        enums.PaymentMethod `gorm:"type:text" json:"method"`
	Status        enums.PaymentStatus `gorm:"type:text" json:"status"`
	AmountCents   int64               `json:"amount_cents"`
	CardLast4     string              `json:"card_last4,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`

	PendingSync bool `gorm:"-" json:"pending_sync,omitempty"`
}

func (p *PaymentTransaction) DocumentID() uuid.UUID { return p.ID }
func (*PaymentTransaction) TableName() string       { return "payment_transactions" }
func (p *PaymentTransaction) SetPendingSync(v bool) { p.PendingSync = v }

// NotificationRecord is one row in notifications, surfaced to customers
// when cart or order state changes on their behalf.
type NotificationRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;index" json:"customer_id"`
	Kind       string     `gorm:"type:text" json:"kind"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	OrderID    *uuid.UUID `gorm:"type:uuid" json:"order_id,omitempty"`
	Read       bool       `json:"read"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`

	PendingSync bool `gorm:"-" json:"pending_sync,omitempty"`
}

func (n *NotificationRecord) DocumentID() uuid.UUID { return n.ID }
func (*NotificationRecord) TableName() string       { return "notifications" }
func (n *NotificationRecord) SetPendingSync(v bool) { n.PendingSync = v }
