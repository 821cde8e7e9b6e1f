package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is a unified BASE/QUOTE pair.
type Symbol struct {
	Base  string
	Quote string
}

func ParseSymbol(s string) (Symbol, error) {
	base, quote, ok := strings.Cut(s, "/")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return Symbol{}, fmt.Errorf("invalid symbol %q, expected BASE/QUOTE", s)
	}
	return Symbol{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}, nil
}

func (s Symbol) String() string {
	return s.Base + "/" + s.Quote
}

// Market is the venue metadata for one symbol. Fees are only valid when the
// venue publishes them.
type Market struct {
	Symbol   Symbol
	ID       string
	Active   bool
	TakerFee decimal.NullDecimal
	MakerFee decimal.NullDecimal
}

// Fee returns the market fees, defaulting unpublished rates to DefaultFeeRate.
func (m Market) Fee() Fee {
	fee := Fee{Taker: DefaultFeeRate, Maker: DefaultFeeRate}
	if m.TakerFee.Valid {
		fee.Taker = m.TakerFee.Decimal
	}
	if m.MakerFee.Valid {
		fee.Maker = m.MakerFee.Decimal
	}
	return fee
}

// Markets is keyed by the unified symbol string.
type Markets map[string]Market
