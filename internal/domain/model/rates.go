package model

import "github.com/shopspring/decimal"

// RateTable maps lower-cased currency codes to multipliers relative to the
// base currency. It is captured once per import run and treated as immutable
// input for that run.
type RateTable map[string]decimal.Decimal
