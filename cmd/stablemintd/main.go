package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stablemint/config"
	"stablemint/core/events"
	"stablemint/core/state"
	"stablemint/crypto"
	"stablemint/gateway"
	"stablemint/native/collateral"
	"stablemint/native/token"
	"stablemint/observability/logging"
	"stablemint/observability/metrics"
	"stablemint/storage"
)

const stableSymbol = "SUSD"

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("stablemintd", cfg.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "positions"))
	if err != nil {
		return fmt.Errorf("open position store: %w", err)
	}
	defer db.Close()

	moduleAddr := crypto.NewAddress(crypto.SMTPrefix, ethcrypto.Keccak256([]byte("stablemint/collateral-engine"))[12:])

	feeds := make([]collateral.PriceFeed, 0, len(cfg.Engine.Oracles))
	for i, ref := range cfg.Engine.Oracles {
		feed, err := buildFeed(ref, cfg.Engine.MaxQuoteAge())
		if err != nil {
			return fmt.Errorf("oracle for %s: %w", cfg.Engine.Assets[i], err)
		}
		feeds = append(feeds, feed)
	}

	operator, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate operator key: %w", err)
	}
	operatorAddr := operator.PubKey().Address()

	stable := token.NewLedger(stableSymbol, moduleAddr)
	tokens := make([]collateral.AssetToken, 0, len(cfg.Engine.Assets))
	for _, symbol := range cfg.Engine.Assets {
		tokens = append(tokens, token.NewLedger(symbol, operatorAddr))
	}

	engine, err := collateral.NewEngine(
		moduleAddr,
		collateral.RiskParameters{
			LiquidationThresholdBps: cfg.Engine.LiquidationThresholdBps,
			LiquidationBonusBps:     cfg.Engine.LiquidationBonusBps,
			MaxQuoteAge:             cfg.Engine.MaxQuoteAge(),
		},
		stable,
		cfg.Engine.Assets,
		feeds,
		tokens,
	)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	engine.SetState(state.NewManager(db))
	engine.SetEmitter(metrics.NewEmitter(&logEmitter{log: logger}))

	logger.Info("engine ready",
		"module", moduleAddr.String(),
		"operator", operatorAddr.String(),
		"assets", strings.Join(cfg.Engine.Assets, ","),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           gateway.NewServer(engine, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// buildFeed parses an oracle reference of the form "manual:<price>:<decimals>".
func buildFeed(ref string, maxAge time.Duration) (collateral.PriceFeed, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 3 || parts[0] != "manual" {
		return nil, fmt.Errorf("unsupported oracle reference %q", ref)
	}
	price, ok := new(big.Int).SetString(parts[1], 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid price in oracle reference %q", ref)
	}
	var decimals uint8
	if _, err := fmt.Sscanf(parts[2], "%d", &decimals); err != nil {
		return nil, fmt.Errorf("invalid decimals in oracle reference %q", ref)
	}
	return collateral.NewMultiFeed(maxAge, collateral.NewManualFeed(price, decimals)), nil
}

// logEmitter mirrors every engine event into the structured log.
type logEmitter struct {
	log *slog.Logger
}

func (l *logEmitter) Emit(event events.Event) {
	if l == nil || event == nil {
		return
	}
	attrs := make([]any, 0, 8)
	for key, value := range event.Attributes() {
		attrs = append(attrs, slog.String(key, value))
	}
	l.log.Info(event.EventType(), attrs...)
}
