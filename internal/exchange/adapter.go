package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"spot-arbitrage/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type AdapterOptions struct {
	Dry       bool
	Sandbox   bool
	RateLimit float64 // requests per second, 0 is unlimited
	Retry     RetryPolicy
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// Adapter wraps one venue. Reads are rate limited and retried; order placement is
// simulated in dry mode and never retried.
type Adapter struct {
	venue   domain.Exchanger
	dry     bool
	retry   RetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewAdapter(venue domain.Exchanger, opts AdapterOptions) (*Adapter, error) {
	if venue == nil {
		return nil, domain.NewConfigurationError("", "initialization failed: no venue client", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("exchange", venue.Name()))

	if opts.Sandbox {
		sandboxer, ok := venue.(domain.Sandboxer)
		if !ok {
			logger.Warn("No sandbox endpoint for " + venue.Name() + ", exiting")
			return nil, domain.NewConfigurationError(venue.Name(), "exchange "+venue.Name()+" does not provide a sandbox api", nil)
		}
		sandboxer.SetSandboxMode(true)
		logger.Info("Enabled Sandbox API on " + venue.Name())
	}

	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = max(1, int(opts.RateLimit))
	}

	retry := opts.Retry
	if retry.Logger == nil {
		retry.Logger = logger
	}

	a := &Adapter{
		venue:   venue,
		dry:     opts.Dry,
		retry:   retry,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = func() string { return uuid.NewString() }
	}
	return a, nil
}

func (a *Adapter) Name() string {
	return a.venue.Name()
}

// Has reports support for capability and fails with a capability error when the
// venue lacks it.
func (a *Adapter) Has(capability domain.Capability) (bool, error) {
	if a.venue.Has()[capability] {
		return true, nil
	}
	return false, domain.NewCapabilityError(a.venue.Name(), capability)
}

func read[T any](ctx context.Context, a *Adapter, capability domain.Capability, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if _, err := a.Has(capability); err != nil {
		return zero, err
	}
	return Retry(ctx, a.retry, capability.String()+" on "+a.venue.Name(), func(ctx context.Context) (T, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		return fn(ctx)
	})
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol domain.Symbol) (domain.OrderBook, error) {
	return read(ctx, a, domain.FetchOrderBook, func(ctx context.Context) (domain.OrderBook, error) {
		return a.venue.FetchOrderBook(ctx, symbol)
	})
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol domain.Symbol) (domain.Ticker, error) {
	return read(ctx, a, domain.FetchTicker, func(ctx context.Context) (domain.Ticker, error) {
		return a.venue.FetchTicker(ctx, symbol)
	})
}

// FetchBalance returns per-currency balances with any aggregate rollup entries removed.
func (a *Adapter) FetchBalance(ctx context.Context) (domain.Balances, error) {
	balances, err := read(ctx, a, domain.FetchBalance, func(ctx context.Context) (domain.Balances, error) {
		return a.venue.FetchBalance(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make(domain.Balances, len(balances))
	for currency, asset := range balances {
		switch strings.ToLower(currency) {
		case "", "info", "free", "used", "total":
			continue
		}
		out[currency] = asset
	}
	return out, nil
}

func (a *Adapter) LoadMarkets(ctx context.Context, reload bool) (domain.Markets, error) {
	return read(ctx, a, domain.LoadMarkets, func(ctx context.Context) (domain.Markets, error) {
		return a.venue.LoadMarkets(ctx, reload)
	})
}

// PlaceOrder submits intent. In dry mode it returns a fully filled simulated order.
// In live mode venue failures are logged and reported as a nil result with a nil
// error; only a missing createOrder capability is returned as an error.
func (a *Adapter) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderResult, error) {
	if a.dry {
		result := a.simulate(intent)
		return &result, nil
	}
	if _, err := a.Has(domain.CreateOrder); err != nil {
		return nil, err
	}

	result, err := a.venue.CreateOrder(ctx, intent)
	if err == nil {
		return &result, nil
	}

	fields := []zap.Field{
		zap.String("symbol", intent.Symbol.String()),
		zap.String("type", intent.Type.String()),
		zap.String("side", intent.Side.String()),
		zap.String("amount", intent.Amount.String()),
		zap.String("price", intent.Price.String()),
		zap.Error(err),
	}
	var venueErr *domain.Error
	switch {
	case domain.IsKind(err, domain.InsufficientFundsError):
		a.logger.Warn("Insufficient funds to create "+intent.Type.String()+" "+intent.Side.String()+" order on market "+intent.Symbol.String(), fields...)
	case domain.IsKind(err, domain.InvalidOrderError):
		a.logger.Warn("Could not create "+intent.Type.String()+" "+intent.Side.String()+" order on market "+intent.Symbol.String(), fields...)
	case domain.IsKind(err, domain.RateLimitError):
		a.logger.Warn("Rate limited while placing "+intent.Side.String()+" order", fields...)
	case errors.As(err, &venueErr):
		a.logger.Warn("Could not place "+intent.Side.String()+" order due to "+venueErr.Kind.String(), fields...)
	default:
		a.logger.Warn("Could not place "+intent.Side.String()+" order", fields...)
	}
	return nil, nil
}

func (a *Adapter) simulate(intent domain.OrderIntent) domain.OrderResult {
	return domain.OrderResult{
		OrderIntent: intent,
		ID:          "dry_order_" + a.newID(),
		Timestamp:   a.now().UnixMilli(),
		Status:      domain.Closed,
		Filled:      intent.Amount,
		Remaining:   decimal.Zero,
	}
}

func (a *Adapter) Close() error {
	return a.venue.Close()
}
