// custodyd runs one custody pool: it polls the custody address for deposits,
// reconciles stake requests, and settles dividend distributions on demand or
// when the pool balance crosses the configured threshold.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"
	"go.etcd.io/bbolt"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/config"
	"github.com/b0ase/libcustody-go/indexer"
	"github.com/b0ase/libcustody-go/ledger"
	"github.com/b0ase/libcustody-go/payout"
	"github.com/b0ase/libcustody-go/pipeline"
	"github.com/b0ase/libcustody-go/registry"
	"github.com/b0ase/libcustody-go/stake"
	"github.com/b0ase/libcustody-go/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Ledger API
	apiURLFlag := flag.String("api-url", "https://api.whatsonchain.com/v1/bsv/main", "ledger query API base URL")
	apiKeyFlag := flag.String("api-key", "", "ledger API key (or set LEDGER_API_KEY env var)")

	// Pool configuration
	custodyAddressFlag := flag.String("custody-address", "", "custody address the pool receives deposits on")
	fundingAddressFlag := flag.String("funding-address", "", "address holding the satoshi pool for payouts and fees")
	fundingKeyFlag := flag.String("funding-key", "", "hex private key for the funding address (or set FUNDING_KEY env var)")
	tickerFlag := flag.String("ticker", "", "token ticker to track")
	testnetFlag := flag.Bool("testnet", false, "use testnet address version")
	issuedSupplyFlag := flag.Uint64("issued-supply", 0, "total issued token supply, 0 = uncapped")

	// Cadence and matching
	pollIntervalFlag := flag.Duration("poll-interval", 30*time.Second, "deposit poll interval")
	depositToleranceFlag := flag.Uint64("deposit-tolerance", 0, "absolute variance allowed when matching deposit amounts")
	depositDeadlineFlag := flag.Duration("deposit-deadline", 24*time.Hour, "how long a stake request waits for its deposit")

	// Payout policy
	feeRateFlag := flag.Uint64("fee-rate", 1, "payout fee rate in sat/KB")
	dustLimitFlag := flag.Uint64("dust-limit", 546, "minimum transferable payment amount")
	minPaymentFlag := flag.Uint64("min-payment", 0, "exclude holders whose dividend falls below this")
	dividendBPSFlag := flag.Uint32("dividend-percent-bps", 7500, "dividend share of the pool in basis points")
	thresholdFlag := flag.Uint64("distribution-threshold", 0, "pool balance that triggers automatic distribution, 0 = manual only")
	maxBroadcastsFlag := flag.Int("max-concurrent-broadcasts", 4, "concurrent payout broadcast limit")
	retryAttemptsFlag := flag.Int("retry-attempts", 3, "per-payment broadcast retry budget")
	retryDelayFlag := flag.Duration("retry-delay", 5*time.Second, "pause between broadcast retries")

	dbPathFlag := flag.String("db", "custodyd.db", "path to the state database")

	flag.Parse()

	if env := os.Getenv("LEDGER_API_KEY"); env != "" {
		*apiKeyFlag = env
	}
	if env := os.Getenv("FUNDING_KEY"); env != "" {
		*fundingKeyFlag = env
	}

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(log)

	cfg := config.DefaultPoolConfig()
	cfg.CustodyAddress = *custodyAddressFlag
	cfg.FundingAddress = *fundingAddressFlag
	cfg.Ticker = *tickerFlag
	if *testnetFlag {
		cfg.AddressVersion = token.TestnetVersion
	}
	cfg.PollInterval = *pollIntervalFlag
	cfg.DepositTolerance = *depositToleranceFlag
	cfg.DepositDeadline = *depositDeadlineFlag
	cfg.FeeRatePerKB = *feeRateFlag
	cfg.DustLimit = *dustLimitFlag
	cfg.MinPayment = *minPaymentFlag
	cfg.DividendPercentBPS = *dividendBPSFlag
	cfg.DistributionThreshold = *thresholdFlag
	cfg.MaxConcurrentBroadcasts = *maxBroadcastsFlag
	cfg.RetryAttempts = *retryAttemptsFlag
	cfg.RetryDelay = *retryDelayFlag
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	keyBytes, err := hex.DecodeString(*fundingKeyFlag)
	if err != nil || len(keyBytes) == 0 {
		return errors.New("funding-key must be a hex-encoded private key")
	}
	fundingKey, _ := ec.PrivateKeyFromBytes(keyBytes)

	db, err := bbolt.Open(*dbPathFlag, 0600, nil)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	reg, err := registry.NewBoltStore(db, *issuedSupplyFlag)
	if err != nil {
		return err
	}
	stakeStore, err := stake.NewBoltStore(db)
	if err != nil {
		return err
	}
	dedup, err := indexer.NewBoltDedup(db)
	if err != nil {
		return err
	}
	settlements, err := payout.NewBoltStore(db)
	if err != nil {
		return err
	}

	svc := ledger.NewClient(ledger.ClientConfig{
		BaseURL: *apiURLFlag,
		APIKey:  *apiKeyFlag,
	})
	sink := audit.NewLogSink(log)

	reconciler := stake.NewReconciler(stake.ReconcilerConfig{
		Tolerance:       cfg.DepositTolerance,
		DepositDeadline: cfg.DepositDeadline,
	}, stakeStore, reg, sink, nil, log)

	ix := indexer.New(indexer.Config{
		CustodyAddress: cfg.CustodyAddress,
		Ticker:         cfg.Ticker,
		AddressVersion: cfg.AddressVersion,
	}, svc, dedup, sink, nil, log)

	executor := payout.NewExecutor(payout.ExecutorConfig{
		Ticker:         cfg.Ticker,
		AddressVersion: cfg.AddressVersion,
		FundingAddress: cfg.FundingAddress,
		FeeRatePerKB:   cfg.FeeRatePerKB,
		DustThreshold:  cfg.DustLimit,
		MaxConcurrent:  cfg.MaxConcurrentBroadcasts,
		RetryAttempts:  cfg.RetryAttempts,
		RetryDelay:     cfg.RetryDelay,
	}, svc, settlements, fundingKey, sink, nil, log)

	p := pipeline.New(cfg, ix, reconciler, reg, executor, sink, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("custodyd starting",
		"custody_address", cfg.CustodyAddress,
		"ticker", cfg.Ticker,
		"poll_interval", cfg.PollInterval)

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("custodyd stopped")
	return nil
}
