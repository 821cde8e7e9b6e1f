package luno

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"spot-arbitrage/internal/domain"

	"github.com/luno/luno-go"
	lunodecimal "github.com/luno/luno-go/decimal"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const Name = "luno"

type Options struct {
	Stream bool
	Logger *zap.Logger
}

// LunoExchange is the Luno REST client with an optional websocket order book.
type LunoExchange struct {
	lunoClient  *luno.Client
	credentials domain.Credentials
	stream      bool
	logger      *zap.Logger

	mu      sync.Mutex
	streams map[string]*Stream
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(credentials domain.Credentials, opts Options) (*LunoExchange, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lunoClient := luno.NewClient()
	if credentials.Key != "" || credentials.Secret != "" {
		if err := lunoClient.SetAuth(credentials.Key, credentials.Secret); err != nil {
			return nil, domain.NewConfigurationError(Name, "initialization failed", err)
		}
	}
	if opts.Stream && credentials.Key == "" {
		return nil, domain.NewConfigurationError(Name, "the websocket order book requires api credentials", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger.Info("Luno client created")
	return &LunoExchange{
		lunoClient:  lunoClient,
		credentials: credentials,
		stream:      opts.Stream,
		logger:      logger,
		streams:     make(map[string]*Stream),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func (lunoExchange *LunoExchange) Name() string {
	return Name
}

func (lunoExchange *LunoExchange) Has() map[domain.Capability]bool {
	return map[domain.Capability]bool{
		domain.FetchOrderBook: true,
		domain.WatchOrderBook: lunoExchange.stream,
		domain.FetchTicker:    true,
		domain.FetchBalance:   true,
		domain.LoadMarkets:    true,
		domain.CreateOrder:    true,
	}
}

func (lunoExchange *LunoExchange) LoadMarkets(ctx context.Context, reload bool) (domain.Markets, error) {
	res, err := lunoExchange.lunoClient.Markets(ctx, &luno.MarketsRequest{})
	if err != nil {
		return nil, translate(err, "failed to load markets")
	}

	markets := make(domain.Markets, len(res.Markets))
	for _, m := range res.Markets {
		symbol := domain.Symbol{Base: fromLunoCurrency(m.BaseCurrency), Quote: fromLunoCurrency(m.CounterCurrency)}
		markets[symbol.String()] = domain.Market{
			Symbol: symbol,
			ID:     m.MarketId,
			Active: string(m.TradingStatus) == "ACTIVE",
		}
	}
	return markets, nil
}

func (lunoExchange *LunoExchange) FetchOrderBook(ctx context.Context, symbol domain.Symbol) (domain.OrderBook, error) {
	pair := Pair(symbol)
	if lunoExchange.stream {
		if book, ok := lunoExchange.subscribe(pair).OrderBook(symbol); ok {
			return book, nil
		}
	}

	res, err := lunoExchange.lunoClient.GetOrderBook(ctx, &luno.GetOrderBookRequest{Pair: pair})
	if err != nil {
		return domain.OrderBook{}, translate(err, "failed to get order book for "+pair)
	}

	output := domain.OrderBook{
		Exchange:  Name,
		Symbol:    symbol,
		Asks:      make([]domain.PriceLevel, 0, len(res.Asks)),
		Bids:      make([]domain.PriceLevel, 0, len(res.Bids)),
		Timestamp: time.Now(),
	}
	for _, ask := range res.Asks {
		output.Asks = append(output.Asks, domain.PriceLevel{Price: toDecimal(ask.Price), Volume: toDecimal(ask.Volume)})
	}
	for _, bid := range res.Bids {
		output.Bids = append(output.Bids, domain.PriceLevel{Price: toDecimal(bid.Price), Volume: toDecimal(bid.Volume)})
	}
	return output, nil
}

func (lunoExchange *LunoExchange) subscribe(pair string) *Stream {
	lunoExchange.mu.Lock()
	defer lunoExchange.mu.Unlock()
	if s, ok := lunoExchange.streams[pair]; ok {
		return s
	}
	s := NewStream("", pair, lunoExchange.credentials, lunoExchange.logger)
	lunoExchange.streams[pair] = s
	go s.Run(lunoExchange.ctx)
	return s
}

func (lunoExchange *LunoExchange) FetchTicker(ctx context.Context, symbol domain.Symbol) (domain.Ticker, error) {
	pair := Pair(symbol)
	res, err := lunoExchange.lunoClient.GetTicker(ctx, &luno.GetTickerRequest{Pair: pair})
	if err != nil {
		return domain.Ticker{}, translate(err, "failed to get ticker for "+pair)
	}
	return domain.Ticker{
		Exchange:  Name,
		Symbol:    symbol,
		Bid:       toDecimal(res.Bid),
		Ask:       toDecimal(res.Ask),
		Last:      toDecimal(res.LastTrade),
		Timestamp: time.Now(),
	}, nil
}

func (lunoExchange *LunoExchange) FetchBalance(ctx context.Context) (domain.Balances, error) {
	res, err := lunoExchange.lunoClient.GetBalances(ctx, &luno.GetBalancesRequest{})
	if err != nil {
		return nil, translate(err, "failed to get balances")
	}

	balances := make(domain.Balances, len(res.Balance))
	for _, b := range res.Balance {
		currency := fromLunoCurrency(b.Asset)
		total := toDecimal(b.Balance)
		used := toDecimal(b.Reserved)
		// an account holder may have several accounts per asset
		if prev, ok := balances[currency]; ok {
			total = total.Add(prev.Total)
			used = used.Add(prev.Used)
		}
		balances[currency] = domain.Asset{Currency: currency, Free: total.Sub(used), Used: used, Total: total}
	}
	return balances, nil
}

func (lunoExchange *LunoExchange) CreateOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	if intent.Type != domain.LimitOrder {
		return domain.OrderResult{}, domain.Wrap(domain.InvalidOrderError, Name, "only limit orders are supported", nil)
	}
	orderType := luno.OrderTypeBid
	if intent.Side == domain.Sell {
		orderType = luno.OrderTypeAsk
	}

	price, err := toLunoDecimal(intent.Price)
	if err != nil {
		return domain.OrderResult{}, err
	}
	volume, err := toLunoDecimal(intent.Amount)
	if err != nil {
		return domain.OrderResult{}, err
	}

	res, err := lunoExchange.lunoClient.PostLimitOrder(ctx, &luno.PostLimitOrderRequest{
		Pair:   Pair(intent.Symbol),
		Type:   orderType,
		Price:  price,
		Volume: volume,
	})
	if err != nil {
		return domain.OrderResult{}, translate(err, "failed to post limit order")
	}

	return domain.OrderResult{
		OrderIntent: intent,
		ID:          res.OrderId,
		Timestamp:   time.Now().UnixMilli(),
		Status:      domain.Open,
		Filled:      decimal.Zero,
		Remaining:   intent.Amount,
	}, nil
}

func (lunoExchange *LunoExchange) Close() error {
	lunoExchange.cancel()
	return nil
}

// Pair converts a unified symbol to a Luno pair, e.g. BTC/ZAR to XBTZAR.
func Pair(symbol domain.Symbol) string {
	return toLunoCurrency(symbol.Base) + toLunoCurrency(symbol.Quote)
}

func toLunoCurrency(currency string) string {
	if currency == "BTC" {
		return "XBT"
	}
	return currency
}

func fromLunoCurrency(currency string) string {
	if currency == "XBT" {
		return "BTC"
	}
	return currency
}

func toDecimal(d lunodecimal.Decimal) decimal.Decimal {
	out, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return out
}

func toLunoDecimal(d decimal.Decimal) (lunodecimal.Decimal, error) {
	out, err := lunodecimal.NewFromString(d.String())
	if err != nil {
		return lunodecimal.Decimal{}, domain.Wrap(domain.InvalidOrderError, Name, "cannot convert "+d.String(), err)
	}
	return out, nil
}

// translate maps Luno API errors onto domain error kinds.
func translate(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var code string
	var apiErr *luno.Error
	var apiErrValue luno.Error
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrValue):
		code = apiErrValue.Code
	default:
		return domain.Wrap(domain.NetworkError, Name, message, err)
	}

	code = strings.ToLower(code)
	switch {
	case strings.Contains(code, "insufficient"):
		return domain.Wrap(domain.InsufficientFundsError, Name, message, err)
	case strings.Contains(code, "toomany") || strings.Contains(code, "rate"):
		return domain.Wrap(domain.RateLimitError, Name, message, err)
	case strings.Contains(code, "invalid") || strings.Contains(code, "volume") || strings.Contains(code, "price"):
		return domain.Wrap(domain.InvalidOrderError, Name, message, err)
	default:
		return domain.Wrap(domain.ExchangeError, Name, message, err)
	}
}
