package models

import (
	"time"
)

// Gender is the target gender of a clothing listing.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderUnisex Gender = "U"
)

// Valid reports whether g is one of the defined gender values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnisex:
		return true
	}
	return false
}

// Condition describes the wear state of a secondhand item.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

// Valid reports whether c is one of the defined condition values.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Listing is a clothing item offered for sale. Price is set at creation and
// never changes; once IsSold flips to true the listing is gone from the
// catalog for good.
type Listing struct {
	Base        `bson:",inline"`
	SellerID    string     `bson:"seller_id" json:"seller_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description"`
	Price       Money      `bson:"price" json:"price"`
	PhoneNumber string     `bson:"phone_number" json:"phone_number"`
	CategoryID  string     `bson:"category_id,omitempty" json:"category_id,omitempty"`
	Gender      Gender     `bson:"gender" json:"gender"`
	Condition   Condition  `bson:"condition" json:"condition"`
	ImageKey    string     `bson:"image,omitempty" json:"image,omitempty"` // S3 key, set by the image worker
	IsSold      bool       `bson:"is_sold" json:"is_sold"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	SoldAt      *time.Time `bson:"sold_at,omitempty" json:"sold_at,omitempty"`
}
