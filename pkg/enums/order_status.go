package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order. Transitions move strictly
// forward; cancellation is only reachable from pending.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPacked,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusPacked:    2,
	OrderStatusShipped:   3,
	OrderStatusDelivered: 4,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
}

// AtLeast reports whether the status has reached the given stage. Cancelled
// orders compare false against every forward stage.
func (o OrderStatus) AtLeast(target OrderStatus) bool {
	rank, ok := orderStatusRank[o]
	if !ok {
		return false
	}
	targetRank, ok := orderStatusRank[target]
	if !ok {
		return false
	}
	return rank >= targetRank
}

// CanTransitionTo enforces the forward-only state machine.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if o == next {
		return false
	}
	if next == OrderStatusCancelled {
		return o == OrderStatusPending
	}
	rank, ok := orderStatusRank[o]
	if !ok {
		return false
	}
	nextRank, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return nextRank == rank+1
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
