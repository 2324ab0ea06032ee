package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Money is an exact fixed-point amount. It is stored in BSON as its decimal
// string representation so no binary floating point is involved anywhere
// between the wire and the arithmetic.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromString parses an amount like "19.99".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{Decimal: d}, nil
}

// ZeroMoney returns the additive identity.
func ZeroMoney() Money {
	return Money{Decimal: decimal.Zero}
}

// Plus returns m + other.
func (m Money) Plus(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// Times returns m multiplied by an integer quantity.
func (m Money) Times(qty int64) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(qty))}
}

// Equal reports exact numeric equality.
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

// StringFixed renders with two decimal places, e.g. "44.98".
func (m Money) StringFixed() string {
	return m.Decimal.StringFixed(2)
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.Decimal.String())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	raw := bson.RawValue{Type: t, Value: data}
	if err := raw.Unmarshal(&s); err != nil {
		return fmt.Errorf("failed to decode money value: %w", err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid stored money amount %q: %w", s, err)
	}
	m.Decimal = d
	return nil
}
