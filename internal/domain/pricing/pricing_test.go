package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExpandBaseFirstUnmodified(t *testing.T) {
	quotes := Expand("USD", dec("19.99"), model.RateTable{
		"eur": dec("0.92"),
		"gbp": dec("0.79"),
	})

	require.Len(t, quotes, 3)
	assert.Equal(t, "USD", quotes[0].Currency)
	assert.True(t, quotes[0].Amount.Equal(dec("19.99")), "base amount must pass through untouched")
}

func TestExpandConversionRounding(t *testing.T) {
	tests := []struct {
		name string
		base string
		rate string
		want string
	}{
		{"rounds to two decimals", "19.99", "0.92", "18.39"},
		{"rounds half away from zero", "10.00", "0.12345", "1.23"},
		{"half cent rounds up", "10.00", "0.1255", "1.26"},
		{"whole result keeps scale", "100.00", "0.5", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes := Expand("USD", dec(tt.base), model.RateTable{"eur": dec(tt.rate)})
			require.Len(t, quotes, 2)
			assert.Equal(t, "EUR", quotes[1].Currency)
			assert.True(t, quotes[1].Amount.Equal(dec(tt.want)),
				"got %s, want %s", quotes[1].Amount, tt.want)
		})
	}
}

func TestExpandSkipsBaseCaseInsensitively(t *testing.T) {
	quotes := Expand("USD", dec("5.00"), model.RateTable{
		"usd": dec("1"),
		"eur": dec("0.92"),
	})

	require.Len(t, quotes, 2)
	assert.Equal(t, "USD", quotes[0].Currency)
	assert.Equal(t, "EUR", quotes[1].Currency)
}

func TestExpandDeterministicOrder(t *testing.T) {
	rates := model.RateTable{
		"jpy": dec("150.1"),
		"eur": dec("0.92"),
		"gbp": dec("0.79"),
		"aud": dec("1.52"),
	}

	for i := 0; i < 10; i++ {
		quotes := Expand("USD", dec("1.00"), rates)
		require.Len(t, quotes, 5)
		assert.Equal(t, "USD", quotes[0].Currency)
		assert.Equal(t, "AUD", quotes[1].Currency)
		assert.Equal(t, "EUR", quotes[2].Currency)
		assert.Equal(t, "GBP", quotes[3].Currency)
		assert.Equal(t, "JPY", quotes[4].Currency)
	}
}

func TestExpandEmptyRateTable(t *testing.T) {
	quotes := Expand("USD", dec("9.99"), model.RateTable{})

	require.Len(t, quotes, 1)
	assert.Equal(t, "USD", quotes[0].Currency)
}
