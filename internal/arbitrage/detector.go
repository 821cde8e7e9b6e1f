package arbitrage

import (
	"context"
	"slices"
	"sync"

	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/exchange"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Strategy finds a trade to execute from the current market state.
type Strategy interface {
	CheckOpportunity(ctx context.Context) (domain.ArbitrageOpportunity, bool, error)
}

// BookSource is the aggregator surface the detector reads from.
type BookSource interface {
	Symbol() domain.Symbol
	Fees() domain.FeeSchedule
	WatchOrderBooks(ctx context.Context) (exchange.Result[domain.OrderBook], error)
}

// Quote is the top of one exchange's order book.
type Quote struct {
	Exchange string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
}

type DetectorOptions struct {
	OrderSize decimal.Decimal
	Logger    *zap.Logger
}

// SpotDetector buys on the exchange with the lowest ask and sells on the one with
// the highest bid, at a fixed order size, net of taker fees.
type SpotDetector struct {
	source    BookSource
	symbol    domain.Symbol
	fees      domain.FeeSchedule
	orderSize decimal.Decimal
	logger    *zap.Logger

	mu     sync.RWMutex
	quotes []Quote
}

// NewSpotDetector caches the fee schedule; it is not refreshed afterwards.
func NewSpotDetector(source BookSource, opts DetectorOptions) *SpotDetector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpotDetector{
		source:    source,
		symbol:    source.Symbol(),
		fees:      source.Fees(),
		orderSize: opts.OrderSize,
		logger:    logger.Named("detector"),
	}
}

func (d *SpotDetector) Fees() domain.FeeSchedule {
	return d.fees
}

// Quotes returns the best bid and ask per exchange from the last check.
func (d *SpotDetector) Quotes() []Quote {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.quotes)
}

func (d *SpotDetector) CheckOpportunity(ctx context.Context) (domain.ArbitrageOpportunity, bool, error) {
	books, err := d.source.WatchOrderBooks(ctx)
	if err != nil {
		return domain.ArbitrageOpportunity{}, false, err
	}

	quotes := make([]Quote, 0, len(books))
	for _, entry := range books {
		ask, err := entry.Value.BestAsk()
		if err != nil {
			return domain.ArbitrageOpportunity{}, false, err
		}
		bid, err := entry.Value.BestBid()
		if err != nil {
			return domain.ArbitrageOpportunity{}, false, err
		}
		quotes = append(quotes, Quote{Exchange: entry.Exchange, Bid: bid.Price, Ask: ask.Price})
	}

	d.mu.Lock()
	d.quotes = quotes
	d.mu.Unlock()

	opp, found := Evaluate(d.symbol, quotes, d.fees, d.orderSize)
	if opp.BuyExchange != "" {
		d.logger.Debug("Evaluated spread",
			zap.String("buy", opp.BuyExchange),
			zap.String("sell", opp.SellExchange),
			zap.String("buyPrice", opp.BuyPrice.String()),
			zap.String("sellPrice", opp.SellPrice.String()),
			zap.String("profit", opp.Profit.String()),
		)
	}
	return opp, found, nil
}

// Evaluate picks the lowest ask and highest bid (first exchange wins ties) and
// computes the fee-adjusted profit for size. found is true only for a strictly
// positive profit across two different exchanges.
func Evaluate(symbol domain.Symbol, quotes []Quote, fees domain.FeeSchedule, size decimal.Decimal) (domain.ArbitrageOpportunity, bool) {
	if len(quotes) == 0 {
		return domain.ArbitrageOpportunity{}, false
	}

	buy, sell := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Ask.LessThan(buy.Ask) {
			buy = q
		}
		if q.Bid.GreaterThan(sell.Bid) {
			sell = q
		}
	}

	buyFee := size.Mul(buy.Ask).Mul(fees.Taker(buy.Exchange))
	sellFee := size.Mul(sell.Bid).Mul(fees.Taker(sell.Exchange))
	profit := sell.Bid.Sub(buy.Ask).Mul(size).Sub(buyFee).Sub(sellFee)

	opp := domain.ArbitrageOpportunity{
		Symbol:         symbol,
		BuyExchange:    buy.Exchange,
		SellExchange:   sell.Exchange,
		BuyPrice:       buy.Ask,
		SellPrice:      sell.Bid,
		Amount:         size,
		BuyFee:         buyFee,
		SellFee:        sellFee,
		TotalFees:      buyFee.Add(sellFee),
		Profit:         profit,
		ProfitFraction: profit.Div(decimal.NewFromInt(100)),
		Buy: domain.OrderIntent{
			Exchange: buy.Exchange,
			Symbol:   symbol,
			Type:     domain.LimitOrder,
			Side:     domain.Buy,
			Amount:   size,
			Price:    buy.Ask,
		},
		Sell: domain.OrderIntent{
			Exchange: sell.Exchange,
			Symbol:   symbol,
			Type:     domain.LimitOrder,
			Side:     domain.Sell,
			Amount:   size,
			Price:    sell.Bid,
		},
	}

	if buy.Exchange == sell.Exchange {
		return opp, false
	}
	return opp, profit.IsPositive()
}
