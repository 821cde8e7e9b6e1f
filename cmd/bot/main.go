package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-arbitrage/internal/arbitrage"
	"spot-arbitrage/internal/balance"
	"spot-arbitrage/internal/domain"
	"spot-arbitrage/internal/exchange"
	"spot-arbitrage/internal/notify"
	"spot-arbitrage/internal/platform/config"
	"spot-arbitrage/internal/platform/logger"
	"spot-arbitrage/internal/server"
	"spot-arbitrage/internal/ui"
	"spot-arbitrage/internal/version"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Spot arbitrage bot for two or more exchanges",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newTradeCmd(), newCreateConfigCmd(), newShowTradesCmd(), newVersionCmd())
	return root
}

func newTradeCmd() *cobra.Command {
	var (
		configPath string
		dashboard  bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Run the arbitrage loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return trade(configPath, dashboard, verbose)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "show the terminal dashboard")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func newCreateConfigCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-config",
		Short: "Write a template config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := name + ".json"
			if err := config.Create(path); err != nil {
				if errors.Is(err, config.ErrExists) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, use --name to write a different file\n", path)
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "config", "config file name without the .json extension")
	return cmd
}

func newShowTradesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-trades",
		Short: "Show past trades (not implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("show-trades is not implemented")
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func trade(configPath string, dashboard, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logOpts := logger.DefaultOptions()
	logOpts.Level = cfg.Log.Level
	logOpts.Filename = cfg.Log.File
	if verbose {
		logOpts.Level = "debug"
	}
	var dash *ui.Dashboard
	if dashboard {
		dash, err = ui.NewDashboard()
		if err != nil {
			return err
		}
		logOpts.Console = false
		logOpts.Extra = dash
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log, dash)
}

// run wires every component and trades until ctx is done. Any error or panic
// that ends it is logged before it is returned.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, dash *ui.Dashboard) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Unhandled panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
			return
		}
		if err != nil {
			log.Error("Stopped trading", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	symbol, err := domain.ParseSymbol(cfg.Symbol)
	if err != nil {
		return err
	}

	adapters, err := exchange.OpenAll(cfg.Exchanges, cfg.Dry, cfg.Retries, log)
	if err != nil {
		return err
	}
	agg, err := exchange.NewAggregator(ctx, symbol, adapters, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := agg.Close(); err != nil {
			log.Warn("Failed to close exchanges", zap.Error(err))
		}
	}()

	ledger, err := balance.New(ctx, balance.Options{
		Dry:        cfg.Dry,
		DryBalance: decimal.NewFromFloat(cfg.DryBalance),
		Symbol:     symbol,
		Logger:     log,
	}, agg)
	if err != nil {
		return err
	}

	detector := arbitrage.NewSpotDetector(agg, arbitrage.DetectorOptions{
		OrderSize: decimal.NewFromFloat(cfg.OrderSize),
		Logger:    log,
	})

	var (
		orchestrator *arbitrage.Orchestrator
		telegram     *notify.Telegram
	)
	notifiers := notify.Multi{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, notify.TelegramOptions{
			Version: version.String(),
			Status:  func() string { return orchestrator.StatusText() },
			Logger:  log,
		})
		if err != nil {
			return domain.NewConfigurationError("", "failed to connect to telegram", err)
		}
		telegram = tg
		notifiers = append(notifiers, telegram)
	}
	if cfg.Discord.Enabled {
		discord, err := notify.NewDiscord(cfg.Discord.WebhookURL, log)
		if err != nil {
			return domain.NewConfigurationError("", "failed to create discord webhook", err)
		}
		defer discord.Close(context.Background())
		notifiers = append(notifiers, discord)
	}

	opts := arbitrage.OrchestratorOptions{
		MinProfit:         decimal.NewFromFloat(cfg.MinProfit),
		TickInterval:      cfg.TickInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Version:           version.String(),
		Notifier:          notifiers,
		Logger:            log,
	}
	if dash != nil {
		opts.Display = dash
	}
	orchestrator = arbitrage.NewOrchestrator(detector, ledger, agg, opts)
	if telegram != nil {
		go telegram.Listen(ctx)
	}

	if cfg.Server.Enabled {
		srv := server.New(orchestrator, ledger, detector, agg)
		srv.RegisterFiberRoutes()
		go func() {
			if err := srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				log.Error("HTTP server error", zap.Error(err))
			}
		}()
		defer gracefulShutdown(srv, log)
	}

	if dash != nil {
		go func() {
			if err := dash.Run(ctx, cancel); err != nil {
				log.Error("Dashboard stopped", zap.Error(err))
			}
		}()
	}

	return orchestrator.Run(ctx)
}

func gracefulShutdown(fiberServer *server.FiberServer, log *zap.Logger) {
	log.Info("Shutting down HTTP server")

	// The server has 5 seconds to finish the request it is currently handling.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}
}
