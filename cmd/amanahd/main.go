package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"amanahchain/audit"
	"amanahchain/config"
	"amanahchain/core/events"
	"amanahchain/core/state"
	"amanahchain/native/certificate"
	"amanahchain/native/donation"
	"amanahchain/native/exchange"
	"amanahchain/observability/logging"
	"amanahchain/observability/metrics"
	"amanahchain/rpc"
	"amanahchain/storage"
)

const foodBankPool = "FOOD_BANK"

// Initial MUSD float credited to the administrator on a fresh chain so local
// networks have liquidity to donate and trade with.
var genesisStableSupply = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000))

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AMANAH_ENV"))
	logger := logging.Setup("amanahd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("Failed to prepare data directory", "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	journal, err := audit.Open(cfg.AuditDBPath, logger)
	if err != nil {
		logger.Error("Failed to open audit journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	emitter := events.NewMultiEmitter(journal, metrics.NewEmitter())

	donationEngine := donation.NewEngine()
	donationEngine.SetState(manager)
	donationEngine.SetEmitter(emitter)

	exchangeEngine := exchange.NewEngine()
	exchangeEngine.SetState(manager)
	exchangeEngine.SetEmitter(emitter)

	certificateEngine := certificate.NewEngine()
	certificateEngine.SetState(manager)
	certificateEngine.SetEmitter(emitter)
	certificateEngine.SetPoolLedger(donationEngine)

	donationEngine.SetCertificateMinter(certificateEngine)

	if err := bootstrap(cfg, manager, donationEngine); err != nil {
		logger.Error("Failed to bootstrap ledger state", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(donationEngine, exchangeEngine, certificateEngine, manager, journal, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("RPC listening", "address", cfg.RPCAddress, "network", cfg.NetworkName, "env", env)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", "error", err)
			os.Exit(1)
		}
	}
}

// bootstrap seeds a fresh chain: the platform and stablecoin tokens, the pool
// administrator role, the administrator's starting MUSD float and the FOOD_BANK
// pool wired to the certificate issuer. Every step is idempotent so restarts
// over an existing data directory are no-ops.
func bootstrap(cfg *config.Config, manager *state.Manager, donationEngine *donation.Engine) error {
	if !manager.TokenExists("AMN") {
		if err := manager.RegisterToken("AMN", "Amanah", 18); err != nil {
			return err
		}
	}
	freshStable := !manager.TokenExists(donation.StableToken)
	if freshStable {
		if err := manager.RegisterToken(donation.StableToken, "Mock USD", 6); err != nil {
			return err
		}
	}

	if strings.TrimSpace(cfg.AdminAddress) == "" {
		return fmt.Errorf("AdminAddress must be configured")
	}
	admin, err := cfg.Admin()
	if err != nil {
		return err
	}
	if err := manager.SetRole(donation.RolePoolAdmin, admin[:]); err != nil {
		return err
	}
	if freshStable {
		if err := manager.SetBalance(admin[:], donation.StableToken, genesisStableSupply); err != nil {
			return err
		}
	}

	if donationEngine.PoolExists(foodBankPool) {
		return nil
	}
	minCert, ok := new(big.Int).SetString(strings.TrimSpace(cfg.FoodBankMinCertAmount), 10)
	if !ok {
		return fmt.Errorf("invalid FoodBankMinCertAmount %q", cfg.FoodBankMinCertAmount)
	}
	issuer := manager.ModuleVaultAddress(certificate.ModuleName)
	if _, err := donationEngine.RegisterPool(admin, foodBankPool, issuer, minCert); err != nil {
		return err
	}
	return nil
}
