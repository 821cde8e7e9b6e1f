package binance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"spot-arbitrage/internal/domain"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	Name             = "binance"
	testnetBaseURL   = "https://testnet.binance.vision"
	orderBookDepth   = 20
	commissionDivide = 10000
)

// BinanceExchange is the Binance spot client.
type BinanceExchange struct {
	client      *binance.Client
	credentials domain.Credentials
	logger      *zap.Logger
}

func New(credentials domain.Credentials, logger *zap.Logger) (*BinanceExchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if (credentials.Key == "") != (credentials.Secret == "") {
		return nil, domain.NewConfigurationError(Name, "initialization failed: key and secret must be set together", nil)
	}
	logger.Info("Binance client created")
	return &BinanceExchange{
		client:      binance.NewClient(credentials.Key, credentials.Secret),
		credentials: credentials,
		logger:      logger,
	}, nil
}

func (b *BinanceExchange) Name() string {
	return Name
}

func (b *BinanceExchange) SetSandboxMode(enabled bool) {
	if enabled {
		b.client.BaseURL = testnetBaseURL
	}
}

func (b *BinanceExchange) Has() map[domain.Capability]bool {
	return map[domain.Capability]bool{
		domain.FetchOrderBook: true,
		domain.FetchTicker:    true,
		domain.FetchBalance:   true,
		domain.LoadMarkets:    true,
		domain.CreateOrder:    true,
	}
}

// LoadMarkets lists spot symbols. Account commission rates are used as fees when
// credentials are configured.
func (b *BinanceExchange) LoadMarkets(ctx context.Context, reload bool) (domain.Markets, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, translate(err, "failed to load markets")
	}

	var taker, maker decimal.NullDecimal
	if b.credentials.Key != "" {
		account, err := b.client.NewGetAccountService().Do(ctx)
		if err != nil {
			return nil, translate(err, "failed to load commission rates")
		}
		taker = decimal.NewNullDecimal(decimal.New(account.TakerCommission, 0).Div(decimal.NewFromInt(commissionDivide)))
		maker = decimal.NewNullDecimal(decimal.New(account.MakerCommission, 0).Div(decimal.NewFromInt(commissionDivide)))
	}

	markets := make(domain.Markets, len(info.Symbols))
	for _, s := range info.Symbols {
		symbol := domain.Symbol{Base: s.BaseAsset, Quote: s.QuoteAsset}
		markets[symbol.String()] = domain.Market{
			Symbol:   symbol,
			ID:       s.Symbol,
			Active:   s.Status == string(binance.SymbolStatusTypeTrading),
			TakerFee: taker,
			MakerFee: maker,
		}
	}
	return markets, nil
}

func (b *BinanceExchange) FetchOrderBook(ctx context.Context, symbol domain.Symbol) (domain.OrderBook, error) {
	res, err := b.client.NewDepthService().Symbol(MarketID(symbol)).Limit(orderBookDepth).Do(ctx)
	if err != nil {
		return domain.OrderBook{}, translate(err, "failed to get order book for "+MarketID(symbol))
	}
	return bookFromDepth(symbol, res)
}

func bookFromDepth(symbol domain.Symbol, res *binance.DepthResponse) (domain.OrderBook, error) {
	output := domain.OrderBook{
		Exchange:  Name,
		Symbol:    symbol,
		Asks:      make([]domain.PriceLevel, 0, len(res.Asks)),
		Bids:      make([]domain.PriceLevel, 0, len(res.Bids)),
		Timestamp: time.Now(),
	}
	for _, ask := range res.Asks {
		level, err := priceLevel(ask.Price, ask.Quantity)
		if err != nil {
			return domain.OrderBook{}, err
		}
		output.Asks = append(output.Asks, level)
	}
	for _, bid := range res.Bids {
		level, err := priceLevel(bid.Price, bid.Quantity)
		if err != nil {
			return domain.OrderBook{}, err
		}
		output.Bids = append(output.Bids, level)
	}
	return output, nil
}

func priceLevel(price, quantity string) (domain.PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.PriceLevel{}, domain.Wrap(domain.ExchangeError, Name, "malformed price "+price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return domain.PriceLevel{}, domain.Wrap(domain.ExchangeError, Name, "malformed quantity "+quantity, err)
	}
	return domain.PriceLevel{Price: p, Volume: q}, nil
}

func (b *BinanceExchange) FetchTicker(ctx context.Context, symbol domain.Symbol) (domain.Ticker, error) {
	tickers, err := b.client.NewListBookTickersService().Symbol(MarketID(symbol)).Do(ctx)
	if err != nil {
		return domain.Ticker{}, translate(err, "failed to get ticker for "+MarketID(symbol))
	}
	if len(tickers) == 0 {
		return domain.Ticker{}, domain.NewMissingDataError(Name, "no ticker for "+MarketID(symbol))
	}
	return tickerFromBook(symbol, tickers[0])
}

// tickerFromBook uses the book ticker mid price as Last.
func tickerFromBook(symbol domain.Symbol, bt *binance.BookTicker) (domain.Ticker, error) {
	bid, err := decimal.NewFromString(bt.BidPrice)
	if err != nil {
		return domain.Ticker{}, domain.Wrap(domain.ExchangeError, Name, "malformed bid price "+bt.BidPrice, err)
	}
	ask, err := decimal.NewFromString(bt.AskPrice)
	if err != nil {
		return domain.Ticker{}, domain.Wrap(domain.ExchangeError, Name, "malformed ask price "+bt.AskPrice, err)
	}
	return domain.Ticker{
		Exchange:  Name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      bid.Add(ask).Div(decimal.NewFromInt(2)),
		Timestamp: time.Now(),
	}, nil
}

func (b *BinanceExchange) FetchBalance(ctx context.Context) (domain.Balances, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, translate(err, "failed to get balances")
	}

	balances := make(domain.Balances, len(account.Balances))
	for _, bal := range account.Balances {
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(bal.Locked)
		if err != nil {
			continue
		}
		balances[bal.Asset] = domain.Asset{Currency: bal.Asset, Free: free, Used: locked, Total: free.Add(locked)}
	}
	return balances, nil
}

func (b *BinanceExchange) CreateOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	side := binance.SideTypeBuy
	if intent.Side == domain.Sell {
		side = binance.SideTypeSell
	}

	service := b.client.NewCreateOrderService().
		Symbol(MarketID(intent.Symbol)).
		Side(side).
		Quantity(intent.Amount.String())
	if intent.Type == domain.LimitOrder {
		service = service.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(intent.Price.String())
	} else {
		service = service.Type(binance.OrderTypeMarket)
	}

	res, err := service.Do(ctx)
	if err != nil {
		return domain.OrderResult{}, translate(err, "failed to create order")
	}

	filled, _ := decimal.NewFromString(res.ExecutedQuantity)
	status := domain.Open
	switch res.Status {
	case binance.OrderStatusTypeFilled:
		status = domain.Closed
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		status = domain.Canceled
	}
	return domain.OrderResult{
		OrderIntent: intent,
		ID:          strconv.FormatInt(res.OrderID, 10),
		Timestamp:   res.TransactTime,
		Status:      status,
		Filled:      filled,
		Remaining:   intent.Amount.Sub(filled),
	}, nil
}

func (b *BinanceExchange) Close() error {
	return nil
}

// MarketID converts a unified symbol to a Binance symbol, e.g. BTC/USDT to BTCUSDT.
func MarketID(symbol domain.Symbol) string {
	return symbol.Base + symbol.Quote
}

// translate maps Binance API errors onto domain error kinds.
func translate(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return domain.Wrap(domain.NetworkError, Name, message, err)
	}

	switch {
	case apiErr.Code == -1003 || apiErr.Code == -1015:
		return domain.Wrap(domain.RateLimitError, Name, message, err)
	case apiErr.Code == -2010 && strings.Contains(strings.ToLower(apiErr.Message), "insufficient"):
		return domain.Wrap(domain.InsufficientFundsError, Name, message, err)
	case apiErr.Code == -2010 || apiErr.Code == -1013 || (apiErr.Code <= -1100 && apiErr.Code >= -1199):
		return domain.Wrap(domain.InvalidOrderError, Name, message, err)
	case apiErr.Code == -1022 || apiErr.Code == -2014 || apiErr.Code == -2015:
		return domain.Wrap(domain.ConfigurationError, Name, message, err)
	default:
		return domain.Wrap(domain.ExchangeError, Name, message, err)
	}
}
