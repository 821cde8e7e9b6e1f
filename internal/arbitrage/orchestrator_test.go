package arbitrage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spot-arbitrage/internal/balance"
	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingTrader struct {
	mu      sync.Mutex
	intents []domain.OrderIntent
	// reject makes the leg at that index return no result
	reject map[int]bool
	err    error
}

func (r *recordingTrader) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.intents)
	r.intents = append(r.intents, intent)
	if r.err != nil {
		return nil, r.err
	}
	if r.reject[idx] {
		return nil, nil
	}
	return &domain.OrderResult{OrderIntent: intent, ID: "dry_order_1", Status: domain.Closed, Filled: intent.Amount}, nil
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(ctx context.Context, text string) error {
	r.messages = append(r.messages, text)
	return r.err
}

type recordingDisplay struct {
	panels map[string]string
}

func (r *recordingDisplay) Update(panel, content, title, style string) {
	if r.panels == nil {
		r.panels = map[string]string{}
	}
	r.panels[panel] = content
}

type fixture struct {
	orchestrator *Orchestrator
	trader       *recordingTrader
	notifier     *recordingNotifier
	display      *recordingDisplay
	logs         *observer.ObservedLogs
}

func newFixture(t *testing.T, minProfit, dryBalance string) fixture {
	t.Helper()
	market := twoVenueMarket()
	ledger, err := balance.New(context.Background(), balance.Options{Dry: true, DryBalance: d(dryBalance), Symbol: btcusdt}, market)
	if err != nil {
		t.Fatal(err)
	}
	core, logs := observer.New(zap.InfoLevel)
	f := fixture{
		trader:   &recordingTrader{},
		notifier: &recordingNotifier{},
		display:  &recordingDisplay{},
		logs:     logs,
	}
	f.orchestrator = NewOrchestrator(
		NewSpotDetector(market, DetectorOptions{OrderSize: d("1")}),
		ledger,
		f.trader,
		OrchestratorOptions{MinProfit: d(minProfit), Notifier: f.notifier, Display: f.display, Logger: zap.New(core)},
	)
	return f
}

func TestTickExecutesOpportunity(t *testing.T) {
	f := newFixture(t, "0", "1000")

	outcome, err := f.orchestrator.Tick(context.Background())
	if err != nil || outcome != Executed {
		t.Fatalf("expected execution, got %s, %v", outcome, err)
	}
	if len(f.trader.intents) != 2 {
		t.Fatalf("expected two legs, got %d", len(f.trader.intents))
	}
	buy, sell := f.trader.intents[0], f.trader.intents[1]
	if buy.Side != domain.Buy || buy.Exchange != "x" || !buy.Price.Equal(d("100")) || buy.Type != domain.LimitOrder {
		t.Errorf("unexpected buy leg %+v", buy)
	}
	if sell.Side != domain.Sell || sell.Exchange != "y" || !sell.Price.Equal(d("105")) {
		t.Errorf("unexpected sell leg %+v", sell)
	}

	status := f.orchestrator.Status()
	if status.TotalTrades != 1 || !status.TotalProfit.Equal(d("4.795")) || status.State != "idle" || status.LastOutcome != "executed" {
		t.Errorf("unexpected status %+v", status)
	}
	if len(f.notifier.messages) != 1 || !strings.Contains(f.notifier.messages[0], "BUY 1 @ 100 on x") || !strings.Contains(f.notifier.messages[0], "SELL 1 @ 105 on y") {
		t.Errorf("unexpected notification %v", f.notifier.messages)
	}
	if !strings.Contains(f.display.panels["orderbook"], "x") || !strings.Contains(f.display.panels["profit"], "4.7950") {
		t.Errorf("unexpected dashboard panels %v", f.display.panels)
	}
	if f.logs.FilterMessage("Found arbitrage opportunity").Len() != 1 {
		t.Errorf("opportunity should be logged at info")
	}
}

func TestTickBelowThreshold(t *testing.T) {
	f := newFixture(t, "5", "1000")

	outcome, err := f.orchestrator.Tick(context.Background())
	if err != nil || outcome != BelowThreshold {
		t.Fatalf("expected threshold skip, got %s, %v", outcome, err)
	}
	if len(f.trader.intents) != 0 || len(f.notifier.messages) != 0 {
		t.Errorf("nothing should be executed or notified")
	}
	if f.orchestrator.Status().LastOpportunity == nil {
		t.Errorf("detected opportunity should still be recorded")
	}
}

func TestTickInsufficientSellBalance(t *testing.T) {
	f := newFixture(t, "0", "0.5")

	outcome, err := f.orchestrator.Tick(context.Background())
	if err != nil || outcome != InsufficientBalance {
		t.Fatalf("expected balance skip, got %s, %v", outcome, err)
	}
	if len(f.trader.intents) != 0 {
		t.Errorf("no order may be placed")
	}
	warnings := f.logs.FilterLevelExact(zap.WarnLevel).All()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	fields := warnings[0].ContextMap()
	if fields["exchange"] != "y" || fields["side"] != "sell" || fields["currency"] != "BTC" {
		t.Errorf("warning should name the selling exchange and side: %v", fields)
	}
}

func TestTickInsufficientBuyBalance(t *testing.T) {
	f := newFixture(t, "0", "50")

	outcome, _ := f.orchestrator.Tick(context.Background())
	if outcome != InsufficientBalance {
		t.Fatalf("expected balance skip, got %s", outcome)
	}
	fields := f.logs.FilterLevelExact(zap.WarnLevel).All()[0].ContextMap()
	if fields["exchange"] != "x" || fields["side"] != "buy" || fields["currency"] != "USDT" {
		t.Errorf("warning should name the buying exchange and side: %v", fields)
	}
}

func TestTickSecondLegRejectedStillCounts(t *testing.T) {
	f := newFixture(t, "0", "1000")
	f.trader.reject = map[int]bool{1: true}

	outcome, err := f.orchestrator.Tick(context.Background())
	if err != nil || outcome != Executed {
		t.Fatalf("expected execution, got %s, %v", outcome, err)
	}
	if f.logs.FilterMessage("Order leg failed").Len() != 1 {
		t.Errorf("failed leg should be warned about")
	}
	if f.orchestrator.Status().TotalTrades != 1 {
		t.Errorf("totals are updated from the computed opportunity")
	}
}

func TestTickNotifyFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "0", "1000")
	f.notifier.err = errors.New("telegram down")

	outcome, err := f.orchestrator.Tick(context.Background())
	if err != nil || outcome != Executed {
		t.Fatalf("notification failure must not fail the tick: %s, %v", outcome, err)
	}
	if f.logs.FilterMessage("Failed to send notification").Len() != 1 {
		t.Errorf("notification failure should be logged")
	}
}

type staticStrategy struct {
	err error
}

func (s staticStrategy) CheckOpportunity(context.Context) (domain.ArbitrageOpportunity, bool, error) {
	return domain.ArbitrageOpportunity{}, false, s.err
}

type staticLedger struct{ err error }

func (s staticLedger) Refresh(context.Context) error { return s.err }

func (staticLedger) Free(string, string) decimal.Decimal { return decimal.Zero }

func (staticLedger) SufficientFree(string, string, decimal.Decimal) bool { return true }

func TestTickAbandonedOnRefreshError(t *testing.T) {
	failure := errors.New("balance fan-out failed")
	o := NewOrchestrator(staticStrategy{}, staticLedger{err: failure}, &recordingTrader{}, OrchestratorOptions{})

	outcome, err := o.Tick(context.Background())
	if outcome != Abandoned || !errors.Is(err, failure) {
		t.Fatalf("expected abandoned tick, got %s, %v", outcome, err)
	}
	if o.Status().LastError == "" {
		t.Errorf("last error should be recorded")
	}
}

func TestRunStopsOnConfigurationError(t *testing.T) {
	cfgErr := domain.NewConfigurationError("x", "bad", nil)
	o := NewOrchestrator(staticStrategy{err: cfgErr}, staticLedger{}, &recordingTrader{}, OrchestratorOptions{Notifier: notify.Nop{}})

	if err := o.Run(context.Background()); !errors.Is(err, cfgErr) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRunContinuesAfterTransientErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := NewOrchestrator(staticStrategy{err: errors.New("timeout")}, staticLedger{}, &recordingTrader{}, OrchestratorOptions{
		TickInterval: time.Millisecond,
		Version:      "test",
		Logger:       zap.New(core),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("run should stop cleanly, got %v", err)
	}
	if o.Status().Ticks < 2 {
		t.Errorf("expected several ticks, got %d", o.Status().Ticks)
	}
	if logs.FilterMessage("Tick abandoned").Len() < 1 {
		t.Errorf("abandoned ticks should be logged")
	}
	if logs.FilterMessage("Bot heartbeat. Running version=test").Len() < 1 {
		t.Errorf("heartbeat should be logged on start")
	}
}
