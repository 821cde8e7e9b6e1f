package server

import (
	"time"

	"spot-arbitrage/internal/arbitrage"
	"spot-arbitrage/internal/domain"

	"github.com/gofiber/fiber/v2"
)

type StatusProvider interface {
	Status() arbitrage.Status
}

type BalanceProvider interface {
	Snapshot() domain.ExchangeBalances
}

type QuoteProvider interface {
	Quotes() []arbitrage.Quote
}

type MarketProvider interface {
	Markets() map[string]domain.Markets
}

type FiberServer struct {
	*fiber.App

	status       StatusProvider
	balances     BalanceProvider
	quotes       QuoteProvider
	markets      MarketProvider
	pushInterval time.Duration
}

func New(status StatusProvider, balances BalanceProvider, quotes QuoteProvider, markets MarketProvider) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "spot-arbitrage",
			AppName:               "spot-arbitrage",
			DisableStartupMessage: true,
		}),

		status:       status,
		balances:     balances,
		quotes:       quotes,
		markets:      markets,
		pushInterval: time.Second,
	}

	return server
}
