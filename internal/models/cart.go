package models

import (
	"time"
)

// CartItem is a (listing, quantity) pair embedded in a cart. Each item gets
// its own ID so it can be addressed by remove/set-quantity calls.
type CartItem struct {
	ID        string    `bson:"id" json:"id"`
	ListingID string    `bson:"listing_id" json:"listing_id"`
	Quantity  int64     `bson:"quantity" json:"quantity"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Cart holds the open shopping cart of one owner. Exactly one of UserID or
// SessionID is set, never both; a partial unique index on each keeps the cart
// singular per owner.
type Cart struct {
	Base      `bson:",inline"`
	UserID    string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID string     `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// FindItem returns the embedded item with the given ID, or nil.
func (c *Cart) FindItem(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// CartLine is a cart item joined with the listing it points at, priced out.
type CartLine struct {
	CartItem  `bson:",inline"`
	Title     string `json:"title"`
	UnitPrice Money  `json:"unit_price"`
	LineTotal Money  `json:"line_total"`
	IsSold    bool   `json:"is_sold"`
	ImageKey  string `json:"image,omitempty"`
	SellerID  string `json:"seller_id"`
}

// CartView is what the API returns for cart reads and mutations: the cart
// plus priced lines and the exact total.
type CartView struct {
	ID        string     `json:"id"`
	Lines     []CartLine `json:"items"`
	Total     Money      `json:"total"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SumLines adds up line totals with exact decimal arithmetic.
func SumLines(lines []CartLine) Money {
	total := ZeroMoney()
	for _, line := range lines {
		total = total.Plus(line.LineTotal)
	}
	return total
}
