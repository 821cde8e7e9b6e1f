package arbitrage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/notify"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trader places a single order leg. A nil result with a nil error means the
// venue rejected the order and the rejection was already logged.
type Trader interface {
	PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderResult, error)
}

type Ledger interface {
	Refresh(ctx context.Context) error
	Free(exchange, currency string) decimal.Decimal
	SufficientFree(exchange, currency string, amount decimal.Decimal) bool
}

// Display receives observational updates, e.g. the terminal dashboard.
type Display interface {
	Update(panel, content, title, borderStyle string)
}

type OrchestratorOptions struct {
	MinProfit         decimal.Decimal
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	Version           string
	Notifier          notify.Notifier
	Display           Display
	Logger            *zap.Logger
}

type Status struct {
	State           string                       `json:"state"`
	Ticks           int64                        `json:"ticks"`
	TotalTrades     int64                        `json:"total_trades"`
	TotalProfit     decimal.Decimal              `json:"total_profit"`
	LastOutcome     string                       `json:"last_outcome"`
	LastOpportunity *domain.ArbitrageOpportunity `json:"last_opportunity,omitempty"`
	LastError       string                       `json:"last_error,omitempty"`
	LastTick        time.Time                    `json:"last_tick"`
	StartedAt       time.Time                    `json:"started_at"`
}

// Orchestrator drives refresh, detect, gate, execute and notify, one tick at a time.
type Orchestrator struct {
	strategy Strategy
	ledger   Ledger
	trader   Trader
	opts     OrchestratorOptions
	logger   *zap.Logger

	runMu sync.Mutex

	mu              sync.RWMutex
	state           State
	ticks           int64
	totalTrades     int64
	totalProfit     decimal.Decimal
	lastOutcome     Outcome
	lastOpportunity *domain.ArbitrageOpportunity
	lastErr         error
	lastTick        time.Time
	startedAt       time.Time
}

func NewOrchestrator(strategy Strategy, ledger Ledger, trader Trader, opts OrchestratorOptions) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = time.Minute
	}
	return &Orchestrator{
		strategy:    strategy,
		ledger:      ledger,
		trader:      trader,
		opts:        opts,
		logger:      opts.Logger.Named("orchestrator"),
		state:       Idle,
		totalProfit: decimal.Zero,
		startedAt:   time.Now(),
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Tick runs one cycle. Ticks never overlap.
func (o *Orchestrator) Tick(ctx context.Context) (Outcome, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	outcome, err := o.tick(ctx)

	o.mu.Lock()
	o.state = Idle
	o.ticks++
	o.lastOutcome = outcome
	o.lastErr = err
	o.lastTick = time.Now()
	o.mu.Unlock()
	return outcome, err
}

func (o *Orchestrator) tick(ctx context.Context) (Outcome, error) {
	o.setState(Refresh)
	if err := o.ledger.Refresh(ctx); err != nil {
		return Abandoned, fmt.Errorf("refresh balances: %w", err)
	}

	o.setState(Detect)
	opp, found, err := o.strategy.CheckOpportunity(ctx)
	if err != nil {
		return Abandoned, fmt.Errorf("check opportunity: %w", err)
	}
	o.showQuotes()
	if !found {
		return NoOpportunity, nil
	}

	o.logger.Info("Found arbitrage opportunity",
		zap.String("symbol", opp.Symbol.String()),
		zap.String("buy", opp.BuyExchange),
		zap.String("buyPrice", opp.BuyPrice.String()),
		zap.String("sell", opp.SellExchange),
		zap.String("sellPrice", opp.SellPrice.String()),
		zap.String("amount", opp.Amount.String()),
		zap.String("profit", opp.Profit.String()),
		zap.String("fees", opp.TotalFees.String()),
	)
	o.mu.Lock()
	o.lastOpportunity = &opp
	o.mu.Unlock()

	o.setState(ThresholdCheck)
	if opp.Profit.LessThanOrEqual(o.opts.MinProfit) {
		o.logger.Info("Profit below minimum, skipping",
			zap.String("profit", opp.Profit.String()), zap.String("minProfit", o.opts.MinProfit.String()))
		return BelowThreshold, nil
	}

	o.setState(BalanceCheck)
	if !o.checkBalances(opp) {
		return InsufficientBalance, nil
	}

	o.setState(Execute)
	if err := o.execute(ctx, opp); err != nil {
		return Abandoned, err
	}

	o.setState(Notify)
	if err := o.opts.Notifier.Send(ctx, o.summary(opp)); err != nil {
		o.logger.Warn("Failed to send notification", zap.Error(err))
	}
	o.showProfit()
	return Executed, nil
}

// checkBalances requires base currency on the sell exchange for the sell leg and
// quote currency for amount*price on the buy exchange for the buy leg.
func (o *Orchestrator) checkBalances(opp domain.ArbitrageOpportunity) bool {
	legs := []struct {
		intent   domain.OrderIntent
		currency string
		required decimal.Decimal
	}{
		{opp.Sell, opp.Symbol.Base, opp.Sell.Amount},
		{opp.Buy, opp.Symbol.Quote, opp.Buy.Cost()},
	}
	for _, leg := range legs {
		if o.ledger.SufficientFree(leg.intent.Exchange, leg.currency, leg.required) {
			continue
		}
		o.logger.Warn("Insufficient balance on "+leg.intent.Exchange+" to "+leg.intent.Side.String()+", skipping",
			zap.String("exchange", leg.intent.Exchange),
			zap.String("side", leg.intent.Side.String()),
			zap.String("currency", leg.currency),
			zap.String("required", leg.required.String()),
			zap.String("free", o.ledger.Free(leg.intent.Exchange, leg.currency).String()),
		)
		return false
	}
	return true
}

// execute places the legs in order with no compensation when a later leg fails.
// Totals use the computed profit, not confirmed fills.
func (o *Orchestrator) execute(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	for _, intent := range opp.Legs() {
		result, err := o.trader.PlaceOrder(ctx, intent)
		if err != nil {
			return fmt.Errorf("place %s order on %s: %w", intent.Side, intent.Exchange, err)
		}
		if result == nil {
			o.logger.Warn("Order leg failed",
				zap.String("exchange", intent.Exchange),
				zap.String("side", intent.Side.String()),
				zap.String("amount", intent.Amount.String()),
				zap.String("price", intent.Price.String()),
			)
			continue
		}
		o.logger.Info("Placed order",
			zap.String("id", result.ID),
			zap.String("exchange", intent.Exchange),
			zap.String("side", intent.Side.String()),
			zap.String("status", result.Status.String()),
			zap.String("filled", result.Filled.String()),
		)
	}

	o.mu.Lock()
	o.totalProfit = o.totalProfit.Add(opp.Profit)
	o.totalTrades++
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) summary(opp domain.ArbitrageOpportunity) string {
	o.mu.RLock()
	totalProfit, totalTrades := o.totalProfit, o.totalTrades
	o.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Arbitrage on %s\n", opp.Symbol)
	for _, leg := range opp.Legs() {
		fmt.Fprintf(&b, "%s %s @ %s on %s\n", strings.ToUpper(leg.Side.String()), leg.Amount, leg.Price, leg.Exchange)
	}
	fmt.Fprintf(&b, "Profit: %s %s\n", opp.Profit.StringFixed(4), opp.Symbol.Quote)
	fmt.Fprintf(&b, "Total profit: %s %s over %d trades", totalProfit.StringFixed(4), opp.Symbol.Quote, totalTrades)
	return b.String()
}

func (o *Orchestrator) showQuotes() {
	if o.opts.Display == nil {
		return
	}
	q, ok := o.strategy.(interface{ Quotes() []Quote })
	if !ok {
		return
	}
	var b strings.Builder
	for _, quote := range q.Quotes() {
		fmt.Fprintf(&b, "%-10s bid %s  ask %s\n", quote.Exchange, quote.Bid, quote.Ask)
	}
	o.opts.Display.Update("orderbook", b.String(), "Order books", "white")
}

func (o *Orchestrator) showProfit() {
	if o.opts.Display == nil {
		return
	}
	s := o.Status()
	style := "green"
	if s.TotalProfit.IsNegative() {
		style = "red"
	}
	o.opts.Display.Update("profit", fmt.Sprintf("Trades: %d\nTotal profit: %s", s.TotalTrades, s.TotalProfit.StringFixed(4)), "Profit", style)
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Status{
		State:           o.state.String(),
		Ticks:           o.ticks,
		TotalTrades:     o.totalTrades,
		TotalProfit:     o.totalProfit,
		LastOutcome:     o.lastOutcome.String(),
		LastOpportunity: o.lastOpportunity,
		LastTick:        o.lastTick,
		StartedAt:       o.startedAt,
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}
	return s
}

// StatusText renders Status for chat replies.
func (o *Orchestrator) StatusText() string {
	s := o.Status()
	text := fmt.Sprintf("State: %s\nTicks: %d\nTrades: %d\nTotal profit: %s", s.State, s.Ticks, s.TotalTrades, s.TotalProfit.StringFixed(4))
	if s.LastError != "" {
		text += "\nLast error: " + s.LastError
	}
	return text
}

// Run ticks every TickInterval until ctx is done, logging a heartbeat on its own
// schedule. An abandoned tick is logged and the next tick starts fresh; a
// configuration or capability error stops the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	heartbeat := cron.New()
	if _, err := heartbeat.AddFunc("@every "+o.opts.HeartbeatInterval.String(), func() {
		o.logger.Info("Bot heartbeat. Running version=" + o.opts.Version)
	}); err != nil {
		return err
	}
	heartbeat.Start()
	defer heartbeat.Stop()

	o.logger.Info("Bot heartbeat. Running version=" + o.opts.Version)
	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := o.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if domain.IsKind(err, domain.ConfigurationError) || domain.IsKind(err, domain.CapabilityError) {
				return err
			}
			o.logger.Error("Tick abandoned", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			o.logger.Info("Stop trading")
			return nil
		case <-ticker.C:
		}
	}
}
