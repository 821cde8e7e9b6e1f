package luno

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"spot-arbitrage/internal/domain"
)

// streamBook is the order book rebuilt from the websocket feed: one snapshot
// followed by sequenced updates.
type streamBook struct {
	mu        sync.Mutex
	ready     bool
	sequence  int64
	status    string
	asks      []LunoOrderBookPriceFeed
	bids      []LunoOrderBookPriceFeed
	updatedAt time.Time
}

func (b *streamBook) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = false
	b.sequence = 0
	b.asks = nil
	b.bids = nil
}

// apply processes one feed message. The first message after a reset must be a snapshot.
func (b *streamBook) apply(message []byte, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// keep-alive
	if trimmed := bytes.TrimSpace(message); len(trimmed) == 0 || string(trimmed) == `""` {
		return nil
	}

	if !b.ready {
		var snapshot LunoOrderBookFeedSnapshot
		if err := json.Unmarshal(message, &snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal Luno order book feed snapshot: %w", err)
		}
		b.asks = slices.Clone(snapshot.Asks)
		b.bids = slices.Clone(snapshot.Bids)
		b.sequence = snapshot.Sequence
		b.status = snapshot.Status
		b.ready = true
		b.updatedAt = now
		return nil
	}

	var update LunoOrderBookFeedMessage
	if err := json.Unmarshal(message, &update); err != nil {
		return fmt.Errorf("failed to unmarshal Luno order book feed: %w", err)
	}
	if update.Sequence != b.sequence+1 {
		return &SequenceIncorrectError{ExpectedSequence: b.sequence + 1, ActualSequence: update.Sequence}
	}
	b.sequence = update.Sequence

	for _, trade := range update.TradeUpdates {
		if !b.fill(&b.asks, trade) {
			b.fill(&b.bids, trade)
		}
	}
	if c := update.CreateUpdate; c != nil {
		order := LunoOrderBookPriceFeed{Id: c.OrderId, Price: c.Price, Volume: c.Volume}
		if c.Type == "ASK" {
			b.asks = append(b.asks, order)
		} else {
			b.bids = append(b.bids, order)
		}
	}
	if d := update.DeleteUpdate; d != nil {
		if !remove(&b.asks, d.OrderId) {
			remove(&b.bids, d.OrderId)
		}
	}
	if s := update.StatusUpdate; s != nil {
		b.status = s.Status
	}
	b.updatedAt = now
	return nil
}

func (b *streamBook) fill(orders *[]LunoOrderBookPriceFeed, trade LunoOrderBookFeedTradeUpdate) bool {
	for i, order := range *orders {
		if order.Id != trade.MakerOrderId {
			continue
		}
		remaining := order.Volume.Sub(trade.Base)
		if remaining.IsPositive() {
			(*orders)[i].Volume = remaining
		} else {
			*orders = slices.Delete(*orders, i, i+1)
		}
		return true
	}
	return false
}

func remove(orders *[]LunoOrderBookPriceFeed, id string) bool {
	for i, order := range *orders {
		if order.Id == id {
			*orders = slices.Delete(*orders, i, i+1)
			return true
		}
	}
	return false
}

// snapshot returns the book best-price-first. ok is false until a snapshot has
// been received or while the market is not active.
func (b *streamBook) snapshot(exchange string, symbol domain.Symbol) (domain.OrderBook, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || (b.status != "" && b.status != "ACTIVE") {
		return domain.OrderBook{}, false
	}

	asks := levels(b.asks)
	bids := levels(b.bids)
	slices.SortStableFunc(asks, func(x, y domain.PriceLevel) int { return x.Price.Cmp(y.Price) })
	slices.SortStableFunc(bids, func(x, y domain.PriceLevel) int { return y.Price.Cmp(x.Price) })

	return domain.OrderBook{
		Exchange:  exchange,
		Symbol:    symbol,
		Asks:      asks,
		Bids:      bids,
		Timestamp: b.updatedAt,
	}, true
}

func levels(orders []LunoOrderBookPriceFeed) []domain.PriceLevel {
	out := make([]domain.PriceLevel, len(orders))
	for i, order := range orders {
		out[i] = domain.PriceLevel{Price: order.Price, Volume: order.Volume}
	}
	return out
}
