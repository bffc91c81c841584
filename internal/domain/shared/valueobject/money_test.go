package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", USD)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", USD)
		assert.Error(t, err)
	})
}

func TestNewMoneyUSD(t *testing.T) {
	m := NewMoneyUSD(decimal.NewFromFloat(50.00))
	assert.Equal(t, USD, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(50.00)))
}

func TestZero(t *testing.T) {
	m := Zero(EUR)
	assert.True(t, m.IsZero())
	assert.Equal(t, EUR, m.Currency())

	usd := ZeroUSD()
	assert.True(t, usd.IsZero())
	assert.Equal(t, USD, usd.Currency())
}

func TestMoneySignPredicates(t *testing.T) {
	positive := NewMoneyUSDFromFloat(100)
	negative := NewMoneyUSDFromFloat(-100)
	zero := ZeroUSD()

	assert.True(t, positive.IsPositive())
	assert.False(t, positive.IsNegative())
	assert.False(t, positive.IsZero())

	assert.False(t, negative.IsPositive())
	assert.True(t, negative.IsNegative())
	assert.False(t, negative.IsZero())

	assert.False(t, zero.IsPositive())
	assert.False(t, zero.IsNegative())
	assert.True(t, zero.IsZero())
}

func TestMoneyAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(100.50)
		m2 := NewMoneyUSDFromFloat(50.25)
		result, err := m1.Add(m2)
		require.NoError(t, err)
		assert.True(t, result.Amount().Equal(decimal.NewFromFloat(150.75)))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1, _ := NewMoneyFromFloat(100, USD)
		m2, _ := NewMoneyFromFloat(50, EUR)
		_, err := m1.Add(m2)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "different currencies")
	})
}

func TestMoneySubtract(t *testing.T) {
	t.Run("subtracts same currency", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(100)
		m2 := NewMoneyUSDFromFloat(30.50)
		result, err := m1.Subtract(m2)
		require.NoError(t, err)
		assert.True(t, result.Amount().Equal(decimal.NewFromFloat(69.50)))
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		m1, _ := NewMoneyFromFloat(100, USD)
		m2, _ := NewMoneyFromFloat(50, GBP)
		_, err := m1.Subtract(m2)
		assert.Error(t, err)
	})

	t.Run("result may go negative", func(t *testing.T) {
		m1 := NewMoneyUSDFromFloat(10)
		m2 := NewMoneyUSDFromFloat(25)
		result, err := m1.Subtract(m2)
		require.NoError(t, err)
		assert.True(t, result.IsNegative())
	})
}

func TestMoneyMultiply(t *testing.T) {
	m := NewMoneyUSDFromFloat(10.50)
	result := m.Multiply(decimal.NewFromInt(3))
	assert.True(t, result.Amount().Equal(decimal.NewFromFloat(31.50)))

	byInt := m.MultiplyByInt(2)
	assert.True(t, byInt.Amount().Equal(decimal.NewFromInt(21)))
}

func TestMoneyNegateAbs(t *testing.T) {
	m := NewMoneyUSDFromFloat(42)
	assert.True(t, m.Negate().IsNegative())
	assert.True(t, m.Negate().Abs().Equals(m))
}

func TestMoneyRound(t *testing.T) {
	m := NewMoneyUSDFromFloat(10.456)
	assert.Equal(t, "10.46", m.Round(2).StringFixed(2))
}

func TestMoneyComparisons(t *testing.T) {
	small := NewMoneyUSDFromFloat(10)
	big := NewMoneyUSDFromFloat(20)

	lt, err := small.LessThan(big)
	require.NoError(t, err)
	assert.True(t, lt)

	gt, err := big.GreaterThan(small)
	require.NoError(t, err)
	assert.True(t, gt)

	gte, err := big.GreaterThanOrEqual(big)
	require.NoError(t, err)
	assert.True(t, gte)

	t.Run("mismatched currencies error", func(t *testing.T) {
		eur, _ := NewMoneyFromFloat(10, EUR)
		_, err := small.LessThan(eur)
		assert.Error(t, err)
	})
}

func TestMoneyEquals(t *testing.T) {
	a := NewMoneyUSDFromFloat(10)
	b := NewMoneyUSDFromFloat(10)
	c, _ := NewMoneyFromFloat(10, EUR)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.True(t, a.SameCurrency(b))
	assert.False(t, a.SameCurrency(c))
}

func TestMoneyString(t *testing.T) {
	m := NewMoneyUSDFromFloat(1234.5)
	assert.Equal(t, "1234.50 USD", m.String())
	assert.Equal(t, "1234.500", m.StringFixed(3))
}

func TestMoneyJSON(t *testing.T) {
	t.Run("marshal", func(t *testing.T) {
		m := NewMoneyUSDFromFloat(99.99)
		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"99.99","currency":"USD"}`, string(data))
	})

	t.Run("unmarshal", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"12.34","currency":"EUR"}`), &m)
		require.NoError(t, err)
		assert.Equal(t, EUR, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(12.34)))
	})

	t.Run("unmarshal invalid amount", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"oops","currency":"USD"}`), &m)
		assert.Error(t, err)
	})
}
