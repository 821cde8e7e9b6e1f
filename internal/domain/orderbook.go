package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderBook levels are best-price-first: asks ascending, bids descending.
type OrderBook struct {
	Exchange  string
	Symbol    Symbol
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

func (o OrderBook) BestBid() (PriceLevel, error) {
	if len(o.Bids) == 0 {
		return PriceLevel{}, NewMissingDataError(o.Exchange, "no bids in order book for "+o.Symbol.String())
	}
	return o.Bids[0], nil
}

func (o OrderBook) BestAsk() (PriceLevel, error) {
	if len(o.Asks) == 0 {
		return PriceLevel{}, NewMissingDataError(o.Exchange, "no asks in order book for "+o.Symbol.String())
	}
	return o.Asks[0], nil
}

type Ticker struct {
	Exchange  string
	Symbol    Symbol
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Timestamp time.Time
}
