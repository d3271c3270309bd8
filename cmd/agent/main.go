// Package main is the entry point for the 0DTE index credit-spread
// trading agent: one cobra command that wires config, auth, the broker
// adapter, storage, the dashboard, and the Day Orchestrator together,
// runs exactly one trading day, and exits 0 once the day completes,
// whatever its outcome, or non-zero when config fails or the day aborts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliywilner/spxspread/internal/auth"
	"github.com/eliywilner/spxspread/internal/broker"
	"github.com/eliywilner/spxspread/internal/config"
	"github.com/eliywilner/spxspread/internal/core/clock"
	"github.com/eliywilner/spxspread/internal/core/gate"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/orchestrator"
	"github.com/eliywilner/spxspread/internal/dashboard"
	"github.com/eliywilner/spxspread/internal/logging"
	"github.com/eliywilner/spxspread/internal/metrics"
	"github.com/eliywilner/spxspread/internal/notify"
	"github.com/eliywilner/spxspread/internal/objectstore"
	"github.com/eliywilner/spxspread/internal/retry"
	"github.com/eliywilner/spxspread/internal/storage"
)

var (
	configPath string
	dryRun     bool
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:   "agent",
		Short: "Runs the 0DTE index credit-spread trading agent for one trading day",
		RunE:  runAgent,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	root.Flags().BoolVar(&dryRun, "dry-run", false, "force dry-run mode regardless of config")
	root.AddCommand(newReportCommand())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dryRun {
		cfg.Environment.DryRun = true
	}

	log := logging.New(cfg.Environment.LogLevel, !cfg.Environment.DryRun)
	log.Infof("starting agent for %s (dry_run=%t, live_trading=%t)",
		cfg.Strategy.Underlying, cfg.Environment.DryRun, cfg.Environment.EnableLiveTrading)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving timezone: %w", err)
	}
	clk := clock.New(loc)

	tokens := auth.New(http.DefaultClient, cfg.Broker.TokenURL, cfg.Broker.ClientID, cfg.Broker.ClientSecret)
	retryClient := retry.NewClient(nil)

	adapter := broker.New(broker.Config{
		HTTPClient:  http.DefaultClient,
		BaseURL:     cfg.Broker.BaseURL,
		AccountID:   cfg.Broker.AccountID,
		Underlying:  cfg.Strategy.Underlying + "W",
		IndexSymbol: "$" + cfg.Strategy.Underlying,
		Tokens:      tokens,
		RetryClient: retryClient,
	})
	brk := broker.NewCircuitBreakerBroker(adapter)

	store, err := storage.NewJSONStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// The object store archives a copy of each day's sealed TradeRecord
	// under its own key, independent of storage.Interface's mutable
	// by-date history -- a durable, never-overwritten artifact trail.
	objStore, err := objectstore.NewLocalStore(cfg.ObjectStore.Endpoint)
	if err != nil {
		return fmt.Errorf("initializing object store: %w", err)
	}

	notifier := notify.New(notify.Config{
		Host:      cfg.Notify.SMTPHost,
		Port:      cfg.Notify.SMTPPort,
		From:      cfg.Notify.From,
		Recipient: cfg.Notify.Recipient,
		Password:  os.Getenv("SMTP_PASSWORD"),
	})

	var dashServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashServer = dashboard.NewServer(dashboard.Config{
			Port:      cfg.Dashboard.Port,
			AuthToken: cfg.Dashboard.AuthToken,
		}, store, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("shutdown signal received, cancelling the trading day")
		cancel()
	}()

	if dashServer != nil {
		go func() {
			if err := dashServer.Start(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("dashboard server error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := dashServer.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("dashboard shutdown error")
			}
		}()
		log.Infof("dashboard listening on :%d", cfg.Dashboard.Port)
	}

	orch := orchestrator.New(clk, adapter, brk, orchestrator.Config{
		MinNetCredit: money.FromFloat(cfg.Strategy.MinNetCredit),
		Slippage:     money.FromFloat(cfg.Strategy.SlippageBuffer),
		RiskPct:      cfg.Risk.DailyRiskPct,
		MinContracts: cfg.Risk.MinContracts,
		MaxContracts: cfg.Risk.MaxContracts,
		Safety: gate.Safety{
			DryRun:            cfg.Environment.DryRun,
			EnableLiveTrading: cfg.Environment.EnableLiveTrading,
		},
	}, log).WithCalendar(adapter.Calendar())

	rec, phase, err := orch.Run(ctx)
	if err != nil {
		log.WithError(err).Errorf("trading day aborted in phase %s", phase)
		return fmt.Errorf("running trading day: %w", err)
	}

	metrics.ObserveOutcome(string(rec.Outcome))
	if rec.Sealed() {
		metrics.SetTotalPnL(rec.TotalPnL)
	}
	if rec.EquityBefore != 0 {
		metrics.SetEquity(rec.EquityBefore)
	}
	if !rec.FillTime.IsZero() && !rec.TriggerTime.IsZero() {
		metrics.ObserveFillLatency(rec.FillTime.Sub(rec.TriggerTime))
	}

	if err := store.AppendRecord(rec); err != nil {
		log.WithError(err).Error("failed to persist trade record")
	}

	if recBytes, err := json.MarshalIndent(rec, "", "  "); err != nil {
		log.WithError(err).Error("failed to marshal trade record for object store archival")
	} else {
		key := "tradedays/" + rec.Date.Format("2006-01-02") + ".json"
		if objStore.Exists(key) {
			log.Warnf("object store already holds %s, keeping the existing copy", key)
		} else if err := objStore.Put(key, recBytes); err != nil {
			log.WithError(err).Error("failed to archive trade record to object store")
		}
	}

	log.Infof("trading day complete: outcome=%s phase=%s pnl=%.2f", rec.Outcome, phase, rec.TotalPnL)

	if err := notifier.SendEOD(rec); err != nil {
		log.WithError(err).Error("failed to send end-of-day report")
	}

	return nil
}
