package balance

import (
	"context"
	"maps"
	"sync"

	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/exchange"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source fetches live balances for every configured exchange.
type Source interface {
	Exchanges() []string
	WatchBalances(ctx context.Context) (exchange.Result[domain.Balances], error)
}

type Options struct {
	Dry        bool
	DryBalance decimal.Decimal
	Symbol     domain.Symbol
	Logger     *zap.Logger
}

// Ledger is the per-exchange, per-currency balance snapshot. Each refresh
// replaces the whole snapshot.
type Ledger struct {
	dry       bool
	source    Source
	exchanges []string
	logger    *zap.Logger

	mu       sync.RWMutex
	balances domain.ExchangeBalances
}

// New seeds a dry ledger with DryBalance of both symbol currencies on every
// exchange, or fetches live balances once.
func New(ctx context.Context, opts Options, source Source) (*Ledger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		dry:       opts.Dry,
		source:    source,
		exchanges: source.Exchanges(),
		logger:    logger.Named("balance"),
	}

	if opts.Dry {
		balances := make(domain.ExchangeBalances, len(l.exchanges))
		for _, ex := range l.exchanges {
			balances[ex] = domain.Balances{
				opts.Symbol.Base:  dryAsset(opts.Symbol.Base, opts.DryBalance),
				opts.Symbol.Quote: dryAsset(opts.Symbol.Quote, opts.DryBalance),
			}
		}
		l.balances = balances
		l.logger.Info("Seeded dry run balances", zap.String("amount", opts.DryBalance.String()), zap.Strings("exchanges", l.exchanges))
		return l, nil
	}

	if err := l.fetch(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func dryAsset(currency string, amount decimal.Decimal) domain.Asset {
	return domain.Asset{Currency: currency, Free: amount, Used: decimal.Zero, Total: amount}
}

// Refresh re-fetches live balances. It does nothing in dry mode.
func (l *Ledger) Refresh(ctx context.Context) error {
	if l.dry {
		return nil
	}
	return l.fetch(ctx)
}

func (l *Ledger) fetch(ctx context.Context) error {
	result, err := l.source.WatchBalances(ctx)
	if err != nil {
		return err
	}
	balances := make(domain.ExchangeBalances, len(result))
	for _, entry := range result {
		balances[entry.Exchange] = maps.Clone(entry.Value)
	}

	l.mu.Lock()
	l.balances = balances
	l.mu.Unlock()
	return nil
}

func (l *Ledger) asset(exchange, currency string) domain.Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[exchange][currency]
}

func (l *Ledger) Free(exchange, currency string) decimal.Decimal {
	return l.asset(exchange, currency).Free
}

func (l *Ledger) Used(exchange, currency string) decimal.Decimal {
	return l.asset(exchange, currency).Used
}

func (l *Ledger) Total(exchange, currency string) decimal.Decimal {
	return l.asset(exchange, currency).Total
}

// AggregateTotal sums Total for currency across the configured exchanges.
func (l *Ledger) AggregateTotal(currency string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum := decimal.Zero
	for _, ex := range l.exchanges {
		sum = sum.Add(l.balances[ex][currency].Total)
	}
	return sum
}

func (l *Ledger) SufficientFree(exchange, currency string, amount decimal.Decimal) bool {
	return l.Free(exchange, currency).GreaterThanOrEqual(amount)
}

// Snapshot returns a copy of the current balances.
func (l *Ledger) Snapshot() domain.ExchangeBalances {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(domain.ExchangeBalances, len(l.balances))
	for ex, balances := range l.balances {
		out[ex] = maps.Clone(balances)
	}
	return out
}
