package models

import (
	"time"
)

// OrderStatus is the shipment lifecycle of an order. Transitions only ever
// move forward; cancelled is reachable from any non-terminal state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the defined order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status transitions exist.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// PaymentStatus is the payment sub-state, independent of shipment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Valid reports whether p is one of the defined payment statuses.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo allows only pending -> paid|failed.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return p == PaymentPending && (next == PaymentPaid || next == PaymentFailed)
}

// ShippingInfo is the delivery contact captured at checkout. All three
// fields are required.
type ShippingInfo struct {
	Name    string `bson:"shipping_name" json:"shipping_name"`
	Phone   string `bson:"shipping_phone" json:"shipping_phone"`
	Address string `bson:"shipping_address" json:"shipping_address"`
}

// Complete reports whether every shipping field is present.
func (s ShippingInfo) Complete() bool {
	return s.Name != "" && s.Phone != "" && s.Address != ""
}

// OrderItem is a frozen snapshot of a cart line at checkout time. Later
// edits to the listing or the cart never reach the order.
type OrderItem struct {
	ListingID   string `bson:"listing_id" json:"listing_id"`
	Title       string `bson:"title" json:"title"`
	UnitPrice   Money  `bson:"unit_price" json:"unit_price"`
	Quantity    int64  `bson:"quantity" json:"quantity"`
	SellerID    string `bson:"seller_id" json:"seller_id"`
	SellerPhone string `bson:"seller_phone" json:"seller_phone"`
}

// Order is an owner's purchase. TotalAmount is computed once at placement
// from the cart's lines and never recomputed.
type Order struct {
	Base          `bson:",inline"`
	UserID        string        `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID     string        `bson:"session_id,omitempty" json:"session_id,omitempty"`
	CartID        string        `bson:"cart_id" json:"cart_id"`
	Items         []OrderItem   `bson:"items" json:"items"`
	TotalAmount   Money         `bson:"total_amount" json:"total_amount"`
	Status        OrderStatus   `bson:"status" json:"status"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"payment_status"`
	Shipping      ShippingInfo  `bson:",inline" json:"shipping"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
	PaidAt        *time.Time    `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	ShippedAt     *time.Time    `bson:"shipped_at,omitempty" json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time    `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
}

// SellerIDs returns the distinct sellers across the order's items.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	var out []string
	for _, item := range o.Items {
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			out = append(out, item.SellerID)
		}
	}
	return out
}

// HasSeller reports whether userID sold at least one item in the order.
func (o *Order) HasSeller(userID string) bool {
	for _, item := range o.Items {
		if item.SellerID == userID {
			return true
		}
	}
	return false
}
