package domain

import "github.com/shopspring/decimal"

// Asset is one currency balance as reported by a venue. Total is trusted from the
// source and not recomputed.
type Asset struct {
	Currency string
	Free     decimal.Decimal
	Used     decimal.Decimal
	Total    decimal.Decimal
}

// Balances maps currency to Asset for one exchange.
type Balances map[string]Asset

// ExchangeBalances maps exchange id to its Balances.
type ExchangeBalances map[string]Balances

type Fee struct {
	Taker decimal.Decimal
	Maker decimal.Decimal
}

// DefaultFeeRate applies when a venue publishes no fee for the traded market.
var DefaultFeeRate = decimal.New(1, -3)

// FeeSchedule maps exchange id to the fees of the traded market.
type FeeSchedule map[string]Fee

// Taker returns the taker rate for exchange, falling back to DefaultFeeRate.
func (f FeeSchedule) Taker(exchange string) decimal.Decimal {
	if fee, ok := f[exchange]; ok {
		return fee.Taker
	}
	return DefaultFeeRate
}
