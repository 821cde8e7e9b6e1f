package domain

import "github.com/shopspring/decimal"

// ArbitrageOpportunity is a detected cross-exchange spread for a fixed order size.
// Buy and Sell are the two order intents that realise it.
type ArbitrageOpportunity struct {
	Symbol         Symbol
	BuyExchange    string
	SellExchange   string
	BuyPrice       decimal.Decimal
	SellPrice      decimal.Decimal
	Amount         decimal.Decimal
	BuyFee         decimal.Decimal
	SellFee        decimal.Decimal
	TotalFees      decimal.Decimal
	Profit         decimal.Decimal
	ProfitFraction decimal.Decimal // profit / 100, not a share of notional
	Buy            OrderIntent
	Sell           OrderIntent
}

// Legs returns the order intents in execution order.
func (o ArbitrageOpportunity) Legs() []OrderIntent {
	return []OrderIntent{o.Buy, o.Sell}
}

type OrderIntent struct {
	Exchange string
	Symbol   Symbol
	Type     OrderType
	Side     Side
	Amount   decimal.Decimal
	Price    decimal.Decimal
}

// Cost is the quote currency notional of the intent.
func (o OrderIntent) Cost() decimal.Decimal {
	return o.Amount.Mul(o.Price)
}

type OrderResult struct {
	OrderIntent
	ID        string
	Timestamp int64 // unix milliseconds
	Status    OrderStatus
	Filled    decimal.Decimal
	Remaining decimal.Decimal
}
