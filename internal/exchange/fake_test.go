package exchange

import (
	"context"
	"sync"

	"spot-arbitrage/internal/domain"

	"github.com/shopspring/decimal"
)

type fakeVenue struct {
	name       string
	has        map[domain.Capability]bool
	markets    domain.Markets
	book       domain.OrderBook
	balances   domain.Balances
	bookErr    error
	tickerErr  error
	orderErr   error
	order      domain.OrderResult
	sandbox    bool
	wantBlock  bool
	mu         sync.Mutex
	bookCalls  int
	orderCalls int
	closed     bool
}

type sandboxVenue struct {
	*fakeVenue
}

func (s sandboxVenue) SetSandboxMode(enabled bool) {
	s.sandbox = enabled
}

func newFakeVenue(name string) *fakeVenue {
	symbol := domain.Symbol{Base: "BTC", Quote: "USDT"}
	return &fakeVenue{
		name: name,
		has: map[domain.Capability]bool{
			domain.FetchOrderBook: true,
			domain.FetchTicker:    true,
			domain.FetchBalance:   true,
			domain.LoadMarkets:    true,
			domain.CreateOrder:    true,
		},
		markets: domain.Markets{symbol.String(): {Symbol: symbol, Active: true}},
		book: domain.OrderBook{
			Exchange: name,
			Symbol:   symbol,
			Bids:     []domain.PriceLevel{{Price: decimal.NewFromInt(99), Volume: decimal.NewFromInt(1)}},
			Asks:     []domain.PriceLevel{{Price: decimal.NewFromInt(101), Volume: decimal.NewFromInt(1)}},
		},
		balances: domain.Balances{},
	}
}

func (f *fakeVenue) Name() string                    { return f.name }
func (f *fakeVenue) Has() map[domain.Capability]bool { return f.has }

func (f *fakeVenue) LoadMarkets(ctx context.Context, reload bool) (domain.Markets, error) {
	return f.markets, nil
}

func (f *fakeVenue) FetchOrderBook(ctx context.Context, symbol domain.Symbol) (domain.OrderBook, error) {
	f.mu.Lock()
	f.bookCalls++
	f.mu.Unlock()
	if f.wantBlock {
		<-ctx.Done()
		return domain.OrderBook{}, ctx.Err()
	}
	if f.bookErr != nil {
		return domain.OrderBook{}, f.bookErr
	}
	return f.book, nil
}

func (f *fakeVenue) FetchTicker(ctx context.Context, symbol domain.Symbol) (domain.Ticker, error) {
	if f.tickerErr != nil {
		return domain.Ticker{}, f.tickerErr
	}
	return domain.Ticker{Exchange: f.name, Symbol: symbol, Bid: f.book.Bids[0].Price, Ask: f.book.Asks[0].Price}, nil
}

func (f *fakeVenue) FetchBalance(ctx context.Context) (domain.Balances, error) {
	return f.balances, nil
}

func (f *fakeVenue) CreateOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	f.mu.Lock()
	f.orderCalls++
	f.mu.Unlock()
	if f.orderErr != nil {
		return domain.OrderResult{}, f.orderErr
	}
	result := f.order
	result.OrderIntent = intent
	return result, nil
}

func (f *fakeVenue) Close() error {
	f.closed = true
	return nil
}
