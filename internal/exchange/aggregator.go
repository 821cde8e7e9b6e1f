package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"spot-arbitrage/internal/domain"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("aggregator is closed")

// Operation is one read executed against every adapter by FanOut.
type Operation[T any] struct {
	Name string
	Call func(ctx context.Context, a *Adapter) (T, error)
}

type Entry[T any] struct {
	Exchange string
	Value    T
}

// Result holds one entry per configured exchange, in configured order.
type Result[T any] []Entry[T]

func (r Result[T]) Map() map[string]T {
	m := make(map[string]T, len(r))
	for _, e := range r {
		m[e.Exchange] = e.Value
	}
	return m
}

func (r Result[T]) Get(exchange string) (T, bool) {
	for _, e := range r {
		if e.Exchange == exchange {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Aggregator owns the adapters for one traded symbol. It holds a scoped context
// for its lifetime; Close cancels it and closes every adapter.
type Aggregator struct {
	symbol   domain.Symbol
	adapters []*Adapter
	markets  map[string]domain.Markets
	logger   *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewAggregator loads markets from every adapter and verifies symbol is listed on
// each of them. Adapters are closed when construction fails.
func NewAggregator(ctx context.Context, symbol domain.Symbol, adapters []*Adapter, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(adapters) == 0 {
		return nil, domain.NewConfigurationError("", "no exchanges configured", nil)
	}

	seen := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.Name()] {
			err := domain.NewConfigurationError(a.Name(), "exchange configured more than once", nil)
			return nil, errors.Join(err, closeAll(adapters))
		}
		seen[a.Name()] = true
	}

	scoped, cancel := context.WithCancel(context.WithoutCancel(ctx))
	agg := &Aggregator{
		symbol:   symbol,
		adapters: adapters,
		logger:   logger.Named("aggregator"),
		ctx:      scoped,
		cancel:   cancel,
	}

	markets, err := agg.LoadMarkets(ctx, false)
	if err != nil {
		return nil, errors.Join(err, agg.Close())
	}
	for _, entry := range markets {
		if _, ok := entry.Value[symbol.String()]; !ok {
			msg := fmt.Sprintf("%s does not have market symbol %s. Please delete it or check if it is correctly written.", entry.Exchange, symbol)
			return nil, errors.Join(domain.NewConfigurationError(entry.Exchange, msg, nil), agg.Close())
		}
	}
	agg.markets = markets.Map()
	agg.logger.Info("Loaded markets", zap.Strings("exchanges", agg.Exchanges()), zap.String("symbol", symbol.String()))
	return agg, nil
}

func closeAll(adapters []*Adapter) error {
	var err error
	for _, a := range adapters {
		err = multierr.Append(err, a.Close())
	}
	return err
}

// FanOut runs op on every adapter concurrently. The first failure cancels the
// remaining calls and fails the whole batch.
func FanOut[T any](ctx context.Context, agg *Aggregator, op Operation[T]) (Result[T], error) {
	if agg.closed.Load() {
		return nil, ErrClosed
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(agg.ctx, cancel)
	defer stop()

	values := make([]T, len(agg.adapters))
	g, gctx := errgroup.WithContext(callCtx)
	for i, a := range agg.adapters {
		g.Go(func() error {
			v, err := op.Call(gctx, a)
			if err != nil {
				return fmt.Errorf("%s on %s: %w", op.Name, a.Name(), err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if agg.closed.Load() {
			return nil, errors.Join(ErrClosed, err)
		}
		return nil, err
	}

	result := make(Result[T], len(agg.adapters))
	for i, a := range agg.adapters {
		result[i] = Entry[T]{Exchange: a.Name(), Value: values[i]}
	}
	return result, nil
}

func (agg *Aggregator) WatchOrderBooks(ctx context.Context) (Result[domain.OrderBook], error) {
	return FanOut(ctx, agg, Operation[domain.OrderBook]{
		Name: "fetchOrderBook",
		Call: func(ctx context.Context, a *Adapter) (domain.OrderBook, error) {
			return a.FetchOrderBook(ctx, agg.symbol)
		},
	})
}

func (agg *Aggregator) WatchTickers(ctx context.Context) (Result[domain.Ticker], error) {
	return FanOut(ctx, agg, Operation[domain.Ticker]{
		Name: "fetchTicker",
		Call: func(ctx context.Context, a *Adapter) (domain.Ticker, error) {
			return a.FetchTicker(ctx, agg.symbol)
		},
	})
}

func (agg *Aggregator) WatchBalances(ctx context.Context) (Result[domain.Balances], error) {
	return FanOut(ctx, agg, Operation[domain.Balances]{
		Name: "fetchBalance",
		Call: func(ctx context.Context, a *Adapter) (domain.Balances, error) {
			return a.FetchBalance(ctx)
		},
	})
}

func (agg *Aggregator) LoadMarkets(ctx context.Context, reload bool) (Result[domain.Markets], error) {
	return FanOut(ctx, agg, Operation[domain.Markets]{
		Name: "loadMarkets",
		Call: func(ctx context.Context, a *Adapter) (domain.Markets, error) {
			return a.LoadMarkets(ctx, reload)
		},
	})
}

// Markets returns the market metadata loaded at construction, keyed by exchange.
func (agg *Aggregator) Markets() map[string]domain.Markets {
	return agg.markets
}

// Fees returns the traded symbol's fees per exchange from the markets loaded at construction.
func (agg *Aggregator) Fees() domain.FeeSchedule {
	fees := make(domain.FeeSchedule, len(agg.markets))
	for exchange, markets := range agg.markets {
		fees[exchange] = markets[agg.symbol.String()].Fee()
	}
	return fees
}

func (agg *Aggregator) Symbol() domain.Symbol {
	return agg.symbol
}

func (agg *Aggregator) Exchanges() []string {
	names := make([]string, len(agg.adapters))
	for i, a := range agg.adapters {
		names[i] = a.Name()
	}
	return names
}

func (agg *Aggregator) Adapter(exchange string) (*Adapter, bool) {
	for _, a := range agg.adapters {
		if a.Name() == exchange {
			return a, true
		}
	}
	return nil, false
}

// PlaceOrder routes intent to the adapter of intent.Exchange.
func (agg *Aggregator) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderResult, error) {
	if agg.closed.Load() {
		return nil, ErrClosed
	}
	a, ok := agg.Adapter(intent.Exchange)
	if !ok {
		return nil, domain.NewConfigurationError(intent.Exchange, "exchange is not configured", nil)
	}
	return a.PlaceOrder(ctx, intent)
}

// Close cancels in-flight calls and closes every adapter. It is safe to call more than once.
func (agg *Aggregator) Close() error {
	agg.closeOnce.Do(func() {
		agg.closed.Store(true)
		agg.cancel()
		agg.closeErr = closeAll(agg.adapters)
		agg.logger.Info("Closed exchange connections")
	})
	return agg.closeErr
}
