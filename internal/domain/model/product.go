package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one ingested catalog row, before currency expansion.
type Product struct {
	ID         int64      `json:"id"                   db:"id"`
	Name       string     `json:"name"                 db:"name"`
	Expiration *time.Time `json:"expiration,omitempty" db:"expiration"`
	JobID      string     `json:"job_id"               db:"job_id"`
}

// ProductPrice is one (product, currency, amount) tuple produced by currency
// expansion. Exactly one row per product carries the base currency.
type ProductPrice struct {
	ID        int64           `json:"id"         db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Currency  string          `json:"currency"   db:"currency"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
}

// ProductCandidate is a parsed and validated source row that has not been
// persisted yet. BaseAmount is the amount in the base currency as it appeared
// in the file.
type ProductCandidate struct {
	Name       string
	Expiration *time.Time
	BaseAmount decimal.Decimal
}

// PriceQuote is one expanded price for a candidate, keyed by currency code.
type PriceQuote struct {
	Currency string
	Amount   decimal.Decimal
}
