package models

import (
	"time"
)

// User represents a registered account. Guests never get a User document;
// they are identified by a session token only.
type User struct {
	Base            `bson:",inline"`
	Username        string    `bson:"username" json:"username"`
	Email           string    `bson:"email" json:"email"`
	FirstName       string    `bson:"first_name" json:"first_name"`
	LastName        string    `bson:"last_name" json:"last_name"`
	PasswordHash    string    `bson:"password" json:"-"`
	ProfileImageKey string    `bson:"profile_image,omitempty" json:"profile_image,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// FullName is the display name used in messages and ratings.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// MissingProfileFields lists what still has to be filled in before the
// profile counts as complete.
func (u *User) MissingProfileFields() []string {
	var missing []string
	if u.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if u.LastName == "" {
		missing = append(missing, "last_name")
	}
	if u.Email == "" {
		missing = append(missing, "email")
	}
	if u.ProfileImageKey == "" {
		missing = append(missing, "profile_image")
	}
	return missing
}

// IsProfileComplete reports whether all profile fields are present.
func (u *User) IsProfileComplete() bool {
	return len(u.MissingProfileFields()) == 0
}
