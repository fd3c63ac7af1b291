package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusDelivering    OrderStatus = "delivering"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusDelivering,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusPaymentFailed,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusPaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status graph allows moving to target.
// Cancellation and payment failure are reachable from any non-terminal state;
// pending may complete directly (time-driven auto completion). Processing is
// only ever an initial status, never a transition target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if !s.IsValid() || !target.IsValid() || s == target {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if target == OrderStatusCancelled || target == OrderStatusPaymentFailed {
		return true
	}
	switch s {
	case OrderStatusPending:
		return target == OrderStatusDelivering || target == OrderStatusCompleted
	case OrderStatusProcessing:
		return target == OrderStatusDelivering
	case OrderStatusDelivering:
		return target == OrderStatusCompleted
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
