package models

import (
	"time"
)

// Category groups listings, e.g. "Jackets" or "Shoes".
type Category struct {
	Base        `bson:",inline"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
