package arbitrage

import (
	"context"
	"errors"
	"testing"

	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/exchange"

	"github.com/shopspring/decimal"
)

var btcusdt = domain.Symbol{Base: "BTC", Quote: "USDT"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeMarket struct {
	quotes []Quote
	fees   domain.FeeSchedule
	err    error
}

func (f *fakeMarket) Symbol() domain.Symbol { return btcusdt }

func (f *fakeMarket) Fees() domain.FeeSchedule { return f.fees }

func (f *fakeMarket) Exchanges() []string {
	names := make([]string, len(f.quotes))
	for i, q := range f.quotes {
		names[i] = q.Exchange
	}
	return names
}

func (f *fakeMarket) WatchOrderBooks(ctx context.Context) (exchange.Result[domain.OrderBook], error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(exchange.Result[domain.OrderBook], len(f.quotes))
	for i, q := range f.quotes {
		out[i] = exchange.Entry[domain.OrderBook]{Exchange: q.Exchange, Value: domain.OrderBook{
			Exchange: q.Exchange,
			Symbol:   btcusdt,
			Bids:     []domain.PriceLevel{{Price: q.Bid, Volume: d("10")}, {Price: q.Bid.Sub(d("1")), Volume: d("10")}},
			Asks:     []domain.PriceLevel{{Price: q.Ask, Volume: d("10")}, {Price: q.Ask.Add(d("1")), Volume: d("10")}},
		}}
	}
	return out, nil
}

func (f *fakeMarket) WatchBalances(ctx context.Context) (exchange.Result[domain.Balances], error) {
	return nil, errors.New("dry ledgers do not fetch")
}

func twoVenueMarket() *fakeMarket {
	return &fakeMarket{
		quotes: []Quote{
			{Exchange: "x", Bid: d("99"), Ask: d("100")},
			{Exchange: "y", Bid: d("105"), Ask: d("106")},
		},
		fees: domain.FeeSchedule{
			"x": {Taker: d("0.001"), Maker: d("0.001")},
			"y": {Taker: d("0.001"), Maker: d("0.001")},
		},
	}
}

func TestDetectorScenario(t *testing.T) {
	det := NewSpotDetector(twoVenueMarket(), DetectorOptions{OrderSize: d("1")})

	opp, found, err := det.CheckOpportunity(context.Background())
	if err != nil || !found {
		t.Fatalf("expected an opportunity, got found=%v err=%v", found, err)
	}
	if !opp.Profit.Equal(d("4.795")) {
		t.Errorf("profit = %s, want 4.795", opp.Profit)
	}
	if !opp.ProfitFraction.Equal(d("0.04795")) {
		t.Errorf("profit fraction = %s", opp.ProfitFraction)
	}
	if !opp.TotalFees.Equal(d("0.205")) {
		t.Errorf("total fees = %s", opp.TotalFees)
	}
	if opp.Buy.Exchange != "x" || !opp.Buy.Price.Equal(d("100")) || opp.Buy.Side != domain.Buy {
		t.Errorf("unexpected buy leg %+v", opp.Buy)
	}
	if opp.Sell.Exchange != "y" || !opp.Sell.Price.Equal(d("105")) || opp.Sell.Side != domain.Sell {
		t.Errorf("unexpected sell leg %+v", opp.Sell)
	}
	if len(det.Quotes()) != 2 {
		t.Errorf("quotes should be cached, got %v", det.Quotes())
	}
}

func TestEvaluateProfitFormula(t *testing.T) {
	fees := domain.FeeSchedule{"a": {Taker: d("0.002")}, "b": {Taker: d("0.00075")}}
	sizes := []string{"0.001", "0.5", "1", "3.25", "1000"}
	prices := [][2]string{{"100", "100.5"}, {"27000.12", "27100.99"}, {"0.0001", "0.0002"}, {"1", "1.0001"}}

	for _, size := range sizes {
		for _, p := range prices {
			a, b, s := d(p[0]), d(p[1]), d(size)
			quotes := []Quote{{Exchange: "a", Ask: a, Bid: a.Sub(d("0.00001"))}, {Exchange: "b", Ask: b.Add(d("1")), Bid: b}}

			opp, found := Evaluate(btcusdt, quotes, fees, s)
			want := b.Sub(a).Mul(s).Sub(s.Mul(a).Mul(d("0.002"))).Sub(s.Mul(b).Mul(d("0.00075")))
			if !opp.Profit.Equal(want) {
				t.Errorf("size %s prices %v: profit %s, want %s", size, p, opp.Profit, want)
			}
			if found != want.IsPositive() {
				t.Errorf("size %s prices %v: found=%v for profit %s", size, p, found, want)
			}
		}
	}
}

func TestEvaluateZeroProfitIsNotFound(t *testing.T) {
	quotes := []Quote{{Exchange: "a", Ask: d("100"), Bid: d("99")}, {Exchange: "b", Ask: d("101"), Bid: d("100")}}
	opp, found := Evaluate(btcusdt, quotes, domain.FeeSchedule{"a": {}, "b": {}}, d("1"))
	if !opp.Profit.IsZero() || found {
		t.Errorf("zero profit must not be found: %s %v", opp.Profit, found)
	}
}

func TestEvaluateSameExchangeIsNotFound(t *testing.T) {
	quotes := []Quote{
		{Exchange: "a", Ask: d("90"), Bid: d("110")},
		{Exchange: "b", Ask: d("100"), Bid: d("100")},
	}
	if _, found := Evaluate(btcusdt, quotes, nil, d("1")); found {
		t.Errorf("buy and sell on the same exchange must not be found")
	}
	if _, found := Evaluate(btcusdt, quotes[:1], nil, d("1")); found {
		t.Errorf("a single exchange must not be found")
	}
}

func TestEvaluateDefaultsFeeAndBreaksTiesInOrder(t *testing.T) {
	quotes := []Quote{
		{Exchange: "a", Ask: d("100"), Bid: d("98")},
		{Exchange: "b", Ask: d("100"), Bid: d("102")},
		{Exchange: "c", Ask: d("101"), Bid: d("102")},
	}
	opp, found := Evaluate(btcusdt, quotes, domain.FeeSchedule{}, d("1"))
	if !found || opp.BuyExchange != "a" || opp.SellExchange != "b" {
		t.Fatalf("unexpected pick %s -> %s (%v)", opp.BuyExchange, opp.SellExchange, found)
	}
	if !opp.Profit.Equal(d("1.798")) {
		t.Errorf("profit with default fees = %s", opp.Profit)
	}
}

func TestDetectorPropagatesErrors(t *testing.T) {
	market := twoVenueMarket()
	market.err = errors.New("fan-out failed")
	det := NewSpotDetector(market, DetectorOptions{OrderSize: d("1")})
	if _, _, err := det.CheckOpportunity(context.Background()); !errors.Is(err, market.err) {
		t.Errorf("expected fan-out error, got %v", err)
	}
}
