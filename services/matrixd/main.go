package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"donutmatrix/core/events"
	"donutmatrix/core/pricing"
	"donutmatrix/core/state"
	"donutmatrix/native/program"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
	"donutmatrix/native/swap/simulator"
	"donutmatrix/observability"
	"donutmatrix/observability/logging"
	"donutmatrix/observability/metrics"
	telemetry "donutmatrix/observability/otel"
	"donutmatrix/services/matrixd/adapters"
	"donutmatrix/services/matrixd/config"
	"donutmatrix/services/matrixd/server"
	"donutmatrix/services/matrixd/storage"
	dbstorage "donutmatrix/storage"
)

func main() {
	var (
		cfgPath string
		envFile string
		verbose bool
	)
	pflag.StringVarP(&cfgPath, "config", "c", "services/matrixd/config.yaml", "path to matrixd configuration file (.yaml or .toml)")
	pflag.StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before configuration")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on the console handler")
	pflag.Parse()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "matrixd: load %s: %v\n", envFile, err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv("MATRIXD_ENV"))
	var logger *slog.Logger
	if env == "dev" {
		logger = logging.SetupConsole(os.Stderr, "matrixd", verbose)
	} else {
		logger = logging.Setup("matrixd", env)
	}

	if err := run(logger, cfgPath, env); err != nil {
		logger.Error("matrixd exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfgPath, env string) error {
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openState(cfg.State)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()
	mgr := state.NewManager(db)
	if err := state.EnsureStateVersion(mgr, cfg.State.AllowMigrate); err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	dsn, err := storage.FileDSN(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("resolve journal DSN: %w", err)
	}
	journal, err := storage.Open(dsn, clock, logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	addrs, err := cfg.Addresses.Registry()
	if err != nil {
		return err
	}
	reg := registry.New(addrs)
	if err := verifyMints(reg); err != nil {
		return err
	}
	programID, _ := config.ParseKey(cfg.Program.ProgramID)
	nativeReserve, _ := config.ParseKey(cfg.Program.NativeReserve)
	authority, _, err := swap.DeriveAuthority(programID)
	if err != nil {
		return fmt.Errorf("derive settlement authority: %w", err)
	}

	sim := simulator.New(simulator.Config{
		Authority:     authority,
		RewardReserve: cfg.Simulated.RewardReserve,
		NativeReserve: cfg.Simulated.NativeReserve,
		Clock:         clock,
	})
	if cfg.Simulated.VaultFunding > 0 {
		sim.FundTokens(addrs.SettlementVault, cfg.Simulated.VaultFunding)
	}
	var reserves swap.ReserveReader = sim
	if cfg.Reserves.Source == config.ReservesRPC {
		reserves = adapters.NewRPCReserveReader(cfg.Reserves.Endpoint, rpc.CommitmentType(cfg.Reserves.Commitment))
		logger.Info("quoting against live reserves", logging.MaskURL("endpoint", cfg.Reserves.Endpoint))
	}

	guard, err := pricing.NewGuard(sim, pricing.Config{
		MinimumUSD:       cfg.Pricing.MinimumUSD,
		FallbackPrice:    cfg.Pricing.FallbackPrice,
		FallbackDecimals: cfg.Pricing.FallbackDecimals,
		MaxAge:           cfg.Pricing.MaxAge.Duration,
	}, clock)
	if err != nil {
		return err
	}
	settler := swap.NewSettler(sim, sim, reserves, swap.SettlerConfig{
		Authority:     authority,
		RewardMint:    addrs.RewardMint,
		NativeReserve: nativeReserve,
	})

	prog, err := program.New(program.Deps{
		State:    mgr,
		Registry: reg,
		Guard:    guard,
		Settler:  settler,
		Clock:    clock,
		Emitter:  events.Multi{journal, observability.Events()},
		Logger:   logger,
		Metrics:  metrics.Matrix(),
	})
	if err != nil {
		return err
	}

	auth, err := server.NewAuthenticator(cfg.Admin.BearerToken)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		ListenAddress:     cfg.ListenAddress,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, server.Runtime{
		Program:   prog,
		Registry:  reg,
		Journal:   journal,
		Auth:      auth,
		Simulated: sim,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("matrixd starting",
		"backend", cfg.State.Backend,
		"reserves", cfg.Reserves.Source,
		"authority", authority.String(),
		logging.MaskField("admin_token", cfg.Admin.BearerToken),
	)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// verifyMints requires a configured reward mint and a settlement-currency mint
// that is wrapped SOL.
func verifyMints(reg *registry.Registry) error {
	expected := reg.Expected()
	if err := reg.VerifyMints(expected.RewardMint, solana.WrappedSol); err != nil {
		return fmt.Errorf("addresses: %w", err)
	}
	return nil
}

func openState(cfg config.StateConfig) (dbstorage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return dbstorage.NewMemDB(), nil
	case config.BackendLevelDB:
		return dbstorage.NewLevelDB(cfg.Path)
	case config.BackendBolt:
		return dbstorage.NewBoltDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

func telemetryConfig(env string) telemetry.Config {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	return telemetry.Config{
		ServiceName: "matrixd",
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     endpoint != "",
		Traces:      endpoint != "",
	}
}
