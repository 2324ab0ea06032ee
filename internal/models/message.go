package models

import (
	"time"
)

// Message is one entry in the append-only conversation log between two
// users, optionally tagged to a listing.
type Message struct {
	Base        `bson:",inline"`
	SenderID    string    `bson:"sender_id" json:"sender_id"`
	RecipientID string    `bson:"recipient_id" json:"recipient_id"`
	ListingID   string    `bson:"listing_id,omitempty" json:"listing_id,omitempty"`
	Content     string    `bson:"content" json:"content"`
	IsRead      bool      `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
