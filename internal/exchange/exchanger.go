package exchange

import (
	"sort"
	"strings"

	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/exchange/binance"
	"spot-arbitrage/internal/exchange/luno"
	"spot-arbitrage/internal/platform/config"

	"go.uber.org/zap"
)

// Factory builds the venue client for one configured exchange.
type Factory func(cfg config.ExchangeConfig, logger *zap.Logger) (domain.Exchanger, error)

var registry = map[string]Factory{
	binance.Name: func(cfg config.ExchangeConfig, logger *zap.Logger) (domain.Exchanger, error) {
		return binance.New(domain.Credentials{Key: cfg.Key, Secret: cfg.Secret}, logger)
	},
	luno.Name: func(cfg config.ExchangeConfig, logger *zap.Logger) (domain.Exchanger, error) {
		return luno.New(domain.Credentials{Key: cfg.Key, Secret: cfg.Secret}, luno.Options{Stream: cfg.Stream, Logger: logger})
	},
}

// Supported lists the exchange names Open accepts.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the adapter for one configured exchange.
func Open(cfg config.ExchangeConfig, dry bool, retries int, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	factory, ok := registry[name]
	if !ok {
		return nil, domain.NewConfigurationError(name, "initialization failed: unsupported exchange, expected one of "+strings.Join(Supported(), ", "), nil)
	}

	venueLogger := logger.Named(name)
	venue, err := factory(cfg, venueLogger)
	if err != nil {
		if domain.IsKind(err, domain.ConfigurationError) {
			return nil, err
		}
		return nil, domain.NewConfigurationError(name, "initialization failed", err)
	}

	adapter, err := NewAdapter(venue, AdapterOptions{
		Dry:       dry,
		Sandbox:   cfg.Sandbox,
		RateLimit: cfg.RateLimit,
		Retry:     NewRetryPolicy(retries, venueLogger),
		Logger:    venueLogger,
	})
	if err != nil {
		_ = venue.Close()
		return nil, err
	}
	return adapter, nil
}

// OpenAll opens every configured exchange in order, closing already opened
// adapters when one fails.
func OpenAll(cfgs []config.ExchangeConfig, dry bool, retries int, logger *zap.Logger) ([]*Adapter, error) {
	adapters := make([]*Adapter, 0, len(cfgs))
	for _, cfg := range cfgs {
		a, err := Open(cfg, dry, retries, logger)
		if err != nil {
			for _, opened := range adapters {
				_ = opened.Close()
			}
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
