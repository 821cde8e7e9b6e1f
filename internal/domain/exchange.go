package domain

import "context"

// Exchanger is the remote trading venue client. Implementations translate their
// SDK errors into *Error values with the matching Kind.
type Exchanger interface {
	Name() string
	Has() map[Capability]bool
	LoadMarkets(ctx context.Context, reload bool) (Markets, error)
	FetchOrderBook(ctx context.Context, symbol Symbol) (OrderBook, error)
	FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error)
	FetchBalance(ctx context.Context) (Balances, error)
	CreateOrder(ctx context.Context, intent OrderIntent) (OrderResult, error)
	Close() error
}

// Sandboxer is implemented by venues that expose a test endpoint.
type Sandboxer interface {
	SetSandboxMode(enabled bool)
}

type Credentials struct {
	Key    string
	Secret string
}
