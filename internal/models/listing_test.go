package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenderValid(t *testing.T) {
	assert.True(t, GenderMale.Valid())
	assert.True(t, GenderFemale.Valid())
	assert.True(t, GenderUnisex.Valid())
	assert.False(t, Gender("X").Valid())
	assert.False(t, Gender("").Valid())
}

func TestConditionValid(t *testing.T) {
	for _, c := range []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair} {
		assert.True(t, c.Valid())
	}
	assert.False(t, Condition("worn_out").Valid())
	assert.False(t, Condition("").Valid())
}

func TestUserProfileCompleteness(t *testing.T) {
	u := &User{Username: "bob", Email: "bob@example.com"}
	assert.False(t, u.IsProfileComplete())
	assert.Contains(t, u.MissingProfileFields(), "first_name")
	assert.Contains(t, u.MissingProfileFields(), "profile_image")
	assert.NotContains(t, u.MissingProfileFields(), "email")

	u.FirstName = "Bob"
	u.LastName = "Smith"
	u.ProfileImageKey = "images/profile/x.jpg"
	assert.True(t, u.IsProfileComplete())
	assert.Equal(t, "Bob Smith", u.FullName())
}
