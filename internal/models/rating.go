package models

import (
	"time"
)

const (
	RatingMin = 1
	RatingMax = 5
)

// Rating is a post-delivery review of a seller, at most one per
// (order, buyer) pair. The seller is derived from the order's items at
// submission time.
type Rating struct {
	Base      `bson:",inline"`
	OrderID   string    `bson:"order_id" json:"order_id"`
	BuyerID   string    `bson:"buyer_id" json:"buyer_id"`
	SellerID  string    `bson:"seller_id" json:"seller_id"`
	Value     int       `bson:"rating" json:"rating"`
	Comment   string    `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// SellerScore is the aggregate rating of one seller.
type SellerScore struct {
	Average float64 `bson:"average" json:"average_rating"`
	Count   int64   `bson:"count" json:"total_ratings"`
}
