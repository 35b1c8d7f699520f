package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(5000), ToMinor(decimal.RequireFromString("50.00"), "usd"))
	assert.Equal(t, int64(1235), ToMinor(decimal.RequireFromString("12.345"), "USD"))
	assert.Equal(t, int64(500), ToMinor(decimal.RequireFromString("500"), "JPY"))
	assert.Equal(t, int64(1500), ToMinor(decimal.RequireFromString("1.5"), "KWD"))

	assert.True(t, decimal.RequireFromString("50").Equal(FromMinor(5000, "USD")))
	assert.True(t, decimal.RequireFromString("500").Equal(FromMinor(500, "JPY")))
	assert.Equal(t, "CAD", Normalize(" cad "))
}
