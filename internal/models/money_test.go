package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, s string) Money {
	t.Helper()
	m, err := MoneyFromString(s)
	require.NoError(t, err)
	return m
}

func TestMoneyExactArithmetic(t *testing.T) {
	// 19.99 * 2 + 5.00 must be exactly 44.98, not 44.980000000000004.
	a := mustMoney(t, "19.99")
	b := mustMoney(t, "5.00")

	total := a.Times(2).Plus(b)
	assert.Equal(t, "44.98", total.StringFixed())
	assert.True(t, total.Equal(mustMoney(t, "44.98")))
}

func TestMoneyFromStringRejectsGarbage(t *testing.T) {
	_, err := MoneyFromString("not-a-number")
	assert.Error(t, err)
}

func TestMoneyBSONRoundTrip(t *testing.T) {
	original := mustMoney(t, "123.45")

	typ, data, err := original.MarshalBSONValue()
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, decoded.UnmarshalBSONValue(typ, data))
	assert.True(t, original.Equal(decoded))
	assert.Equal(t, "123.45", decoded.StringFixed())
}

func TestSumLines(t *testing.T) {
	lines := []CartLine{
		{LineTotal: mustMoney(t, "39.98")},
		{LineTotal: mustMoney(t, "5.00")},
	}
	assert.Equal(t, "44.98", SumLines(lines).StringFixed())

	assert.Equal(t, "0.00", SumLines(nil).StringFixed())
}
