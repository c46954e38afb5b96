// Package pricing expands a base-currency amount into one priced entry per
// supported currency using a captured rate table.
package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

// Expand returns one quote at the base currency carrying the original amount,
// plus one quote per other currency in the table with
// amount = round(base * rate, 2), rounded half away from zero. The base
// currency key in the table is skipped case-insensitively to avoid a
// duplicate. Output order is the base currency first, then the remaining
// codes sorted, so batch inserts stay deterministic.
func Expand(baseCurrency string, baseAmount decimal.Decimal, rates model.RateTable) []model.PriceQuote {
	quotes := make([]model.PriceQuote, 0, len(rates)+1)
	quotes = append(quotes, model.PriceQuote{
		Currency: strings.ToUpper(baseCurrency),
		Amount:   baseAmount,
	})

	codes := make([]string, 0, len(rates))
	for code := range rates {
		if strings.EqualFold(code, baseCurrency) {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		quotes = append(quotes, model.PriceQuote{
			Currency: strings.ToUpper(code),
			Amount:   baseAmount.Mul(rates[code]).Round(2),
		})
	}
	return quotes
}
