package models

import (
	"github.com/google/uuid"
)

// NewID returns a fresh document ID. IDs are plain UUID strings so they can be
// used verbatim in URLs, JSON and Mongo filters.
func NewID() string {
	return uuid.NewString()
}

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id string)
}

type Base struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID == "" {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = NewID()
}

func (m *Base) SetID(id string) {
	m.ID = id
}

func NewBase() Base {
	return Base{ID: NewID()}
}
