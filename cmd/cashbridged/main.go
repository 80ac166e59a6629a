package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/internal/engineclient"
	"github.com/MarkoPoloResearchLab/cashbridge/internal/httpapi"
	"github.com/MarkoPoloResearchLab/cashbridge/internal/messenger"
	"github.com/MarkoPoloResearchLab/cashbridge/internal/mintwatch"
	"github.com/MarkoPoloResearchLab/cashbridge/internal/oplog"
	"github.com/MarkoPoloResearchLab/cashbridge/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
	"github.com/MarkoPoloResearchLab/cashbridge/pkg/rates"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagEngineURL       = "engine-url"
	flagMessengerURL    = "messenger-url"
	flagSigningKey      = "session-signing-key"
	flagSessionIssuer   = "session-issuer"
	flagAllowedOrigins  = "allowed-origins"
	flagFiatCurrency    = "fiat-currency"
	flagWatchInterval   = "mint-watch-interval"
	configDatabaseURL   = "database_url"
	configListenAddr    = "listen_addr"
	configEngineURL     = "engine_url"
	configMessengerURL  = "messenger_url"
	configSigningKey    = "session_signing_key"
	configSessionIssuer = "session_issuer"
	configOrigins       = "allowed_origins"
	configFiatCurrency  = "fiat_currency"
	configWatchInterval = "mint_watch_interval"

	defaultDatabaseURL   = "sqlite:///tmp/cashbridge.db"
	defaultListenAddr    = ":8090"
	defaultEngineURL     = "http://localhost:7100"
	defaultMessengerURL  = "http://localhost:7200"
	defaultFiatCurrency  = "USD"
	defaultWatchInterval = 5 * time.Second
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	EngineURL      string
	MessengerURL   string
	SigningKey     string
	SessionIssuer  string
	AllowedOrigins string
	FiatCurrency   string
	WatchInterval  time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cashbridged: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "cashbridged",
		Short:         "Ecash payments reconciliation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagEngineURL, defaultEngineURL, "wallet engine base URL")
	cmd.Flags().String(flagMessengerURL, defaultMessengerURL, "messaging daemon base URL")
	cmd.Flags().String(flagSigningKey, "", "JWT session signing key")
	cmd.Flags().String(flagSessionIssuer, "", "JWT session issuer")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.Flags().String(flagFiatCurrency, defaultFiatCurrency, "fiat currency code for balance display")
	cmd.Flags().Duration(flagWatchInterval, defaultWatchInterval, "pending mint sweep interval")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := []struct {
		configKey string
		envKey    string
		flagName  string
	}{
		{configDatabaseURL, "DATABASE_URL", flagDatabaseURL},
		{configListenAddr, "LISTEN_ADDR", flagListenAddr},
		{configEngineURL, "ENGINE_URL", flagEngineURL},
		{configMessengerURL, "MESSENGER_URL", flagMessengerURL},
		{configSigningKey, "SESSION_SIGNING_KEY", flagSigningKey},
		{configSessionIssuer, "SESSION_ISSUER", flagSessionIssuer},
		{configOrigins, "ALLOWED_ORIGINS", flagAllowedOrigins},
		{configFiatCurrency, "FIAT_CURRENCY", flagFiatCurrency},
		{configWatchInterval, "MINT_WATCH_INTERVAL", flagWatchInterval},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.configKey, binding.envKey); err != nil {
			return err
		}
		if err := viper.BindPFlag(binding.configKey, cmd.Flags().Lookup(binding.flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configDatabaseURL)
	cfg.ListenAddr = viper.GetString(configListenAddr)
	cfg.EngineURL = viper.GetString(configEngineURL)
	cfg.MessengerURL = viper.GetString(configMessengerURL)
	cfg.SigningKey = viper.GetString(configSigningKey)
	cfg.SessionIssuer = viper.GetString(configSessionIssuer)
	cfg.AllowedOrigins = viper.GetString(configOrigins)
	cfg.FiatCurrency = viper.GetString(configFiatCurrency)
	cfg.WatchInterval = viper.GetDuration(configWatchInterval)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = defaultWatchInterval
	}
	if cfg.EngineURL == "" {
		return fmt.Errorf("engine url is required")
	}
	if cfg.MessengerURL == "" {
		return fmt.Errorf("messenger url is required")
	}
	if cfg.SigningKey == "" {
		return fmt.Errorf("session signing key is required")
	}
	return nil
}

func runDaemon(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	store := gormstore.New(gormDB)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	engine, err := engineclient.New(cfg.EngineURL)
	if err != nil {
		return fmt.Errorf("engine client init: %w", err)
	}
	messengerClient, err := messenger.New(cfg.MessengerURL)
	if err != nil {
		return fmt.Errorf("messenger client init: %w", err)
	}

	clock := func() int64 { return time.Now().UnixMilli() }
	operationLogger := oplog.NewZapLogger(logger)

	workflow, err := payments.NewWorkflow(engine, clock,
		payments.WithPendingMintStore(store.PendingMints()),
		payments.WithWorkflowLogger(operationLogger),
	)
	if err != nil {
		return fmt.Errorf("workflow init: %w", err)
	}
	sendFlow, err := payments.NewSendFlow(workflow, store.SentRecords(), messengerClient, clock,
		payments.WithSendFlowLogger(operationLogger),
	)
	if err != nil {
		return fmt.Errorf("send flow init: %w", err)
	}
	receiveFlow, err := payments.NewReceiveFlow(engine, store.ReceivedRecords(), clock,
		payments.WithReceiveFlowLogger(operationLogger),
	)
	if err != nil {
		return fmt.Errorf("receive flow init: %w", err)
	}

	feed, err := payments.NewLedgerFeed(engine, store.SentRecords(), store.ReceivedRecords(), store.PendingMints(), store.TopUps())
	if err != nil {
		return fmt.Errorf("ledger feed init: %w", err)
	}
	ratesProvider := rates.NewCoinbaseProvider()
	aggregator, err := payments.NewAggregator(engine,
		payments.WithHistorySource(feed),
		payments.WithRatesProvider(ratesProvider, cfg.FiatCurrency),
		payments.WithAggregatorLogger(operationLogger),
	)
	if err != nil {
		return fmt.Errorf("aggregator init: %w", err)
	}
	aggregator.Start()
	defer aggregator.Stop()
	aggregator.SetPaymentsState(payments.StateActivated)
	aggregator.RefreshActivity(ctx)

	watcher, err := mintwatch.New(engine, store.PendingMints(), store.TopUps(),
		mintwatch.WithInterval(cfg.WatchInterval),
		mintwatch.WithLogger(logger),
		mintwatch.WithMintedCallback(func(callbackCtx context.Context) {
			aggregator.RefreshActivity(callbackCtx)
		}),
	)
	if err != nil {
		return fmt.Errorf("mint watcher init: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	apiConfig := httpapi.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.SigningKey,
		SessionIssuer:     cfg.SessionIssuer,
	}
	server, err := httpapi.New(apiConfig, httpapi.Deps{
		Aggregator: aggregator,
		Workflow:   workflow,
		SendFlow:   sendFlow,
		Receive:    receiveFlow,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("httpapi init: %w", err)
	}
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "cashbridge.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
