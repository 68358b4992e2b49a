package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/driver/local"
	"github.com/dragon-panic/nclav/pkg/httpapi"
	"github.com/dragon-panic/nclav/pkg/reconciler"
	"github.com/dragon-panic/nclav/pkg/store"
	"github.com/dragon-panic/nclav/pkg/store/memstore"
	"github.com/dragon-panic/nclav/pkg/store/pgstore"
	"github.com/dragon-panic/nclav/pkg/store/sqlitestore"
	"github.com/dragon-panic/nclav/pkg/telemetry"
)

// serveConfig is nclavd's process-level configuration, distinct from
// the per-enclave config.yml tree the reconciler loads at request time.
// It may be supplied via --config as YAML; command-line flags override
// whatever the file sets.
type serveConfig struct {
	Listen        string `yaml:"listen"`
	BearerToken   string `yaml:"bearer_token"`
	WorkspaceHome string `yaml:"workspace_home"`
	APIBaseURL    string `yaml:"api_base_url"`
	BaseDomain    string `yaml:"base_domain"`

	Store struct {
		Backend     string `yaml:"backend"` // memory|sqlite|postgres
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"store"`

	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsListen  string `yaml:"metrics_listen"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

func defaultServeConfig() serveConfig {
	cfg := serveConfig{
		Listen:         ":8080",
		WorkspaceHome:  "./nclav-workspaces",
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsListen:  ":9090",
		TracingEnabled: true,
	}
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = "./nclav.db"
	return cfg
}

func loadServeConfigFile(path string) (serveConfig, error) {
	cfg := defaultServeConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	var (
		listen        string
		bearerToken   string
		workspaceHome string
		apiBaseURL    string
		baseDomain    string
		storeBackend  string
		sqlitePath    string
		postgresDSN   string
		logLevel      string
		logFormat     string
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the nclavd HTTP server",
		Long: `serve starts the reconcile API, the Terraform HTTP state backend, and
the IaC run / event history read endpoints on one listener, backed by
the configured store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfigFile(configPath)
			if err != nil {
				return err
			}
			applyServeFlagOverrides(&cfg, cmd, listen, bearerToken, workspaceHome, apiBaseURL, baseDomain, storeBackend, sqlitePath, postgresDSN, logLevel, logFormat, metricsListen)

			if cfg.BearerToken == "" {
				return errors.New("bearer token is required (set --bearer-token or bearer_token in the config file)")
			}

			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default :8080)")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", "", "static bearer token required on every endpoint but /health and /ready")
	cmd.Flags().StringVar(&workspaceHome, "workspace-home", "", "filesystem root IaC workspaces are materialized under")
	cmd.Flags().StringVar(&apiBaseURL, "api-base-url", "", "this process's externally-reachable base URL, used for the Terraform HTTP backend address")
	cmd.Flags().StringVar(&baseDomain, "base-domain", "", "base domain the local driver synthesizes hostnames under")
	cmd.Flags().StringVar(&storeBackend, "store", "", "store backend: memory, sqlite, or postgres")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "", "sqlite database file path (when --store=sqlite)")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "postgres connection string (when --store=postgres)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error, fatal")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log format: console or json")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "prometheus /metrics listen address")

	return cmd
}

func applyServeFlagOverrides(cfg *serveConfig, cmd *cobra.Command, listen, bearerToken, workspaceHome, apiBaseURL, baseDomain, storeBackend, sqlitePath, postgresDSN, logLevel, logFormat, metricsListen string) {
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listen
	}
	if cmd.Flags().Changed("bearer-token") {
		cfg.BearerToken = bearerToken
	}
	if cmd.Flags().Changed("workspace-home") {
		cfg.WorkspaceHome = workspaceHome
	}
	if cmd.Flags().Changed("api-base-url") {
		cfg.APIBaseURL = apiBaseURL
	}
	if cmd.Flags().Changed("base-domain") {
		cfg.BaseDomain = baseDomain
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend = storeBackend
	}
	if cmd.Flags().Changed("sqlite-path") {
		cfg.Store.SQLitePath = sqlitePath
	}
	if cmd.Flags().Changed("postgres-dsn") {
		cfg.Store.PostgresDSN = postgresDSN
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("metrics-listen") {
		cfg.MetricsListen = metricsListen
	}
}

func openStore(cfg serveConfig) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlitestore.New(sqlitestore.Config{Path: cfg.Store.SQLitePath})
	case "postgres":
		return pgstore.New(pgstore.Config{DSN: cfg.Store.PostgresDSN})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func runServe(ctx context.Context, cfg serveConfig) error {
	tel, err := telemetry.NewTelemetry(&telemetry.Config{
		ServiceName:    "nclavd",
		ServiceVersion: "dev",
		Environment:    "production",
		Logging: telemetry.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: "stdout",
		},
		Tracing: telemetry.TracingConfig{
			Enabled:      cfg.TracingEnabled,
			Exporter:     "stdout",
			SamplingRate: 1.0,
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:       true,
			ListenAddress: cfg.MetricsListen,
			Path:          "/metrics",
			Namespace:     "nclav",
		},
	})
	if err != nil {
		return fmt.Errorf("building telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	drivers := driver.NewRegistry(domain.CloudLocal)
	drivers.Register(domain.CloudLocal, local.New(cfg.BaseDomain))

	rec := reconciler.New(reconciler.Config{
		Store:         st,
		Drivers:       drivers,
		WorkspaceHome: cfg.WorkspaceHome,
		APIBaseURL:    cfg.APIBaseURL,
		BearerToken:   cfg.BearerToken,
	})

	srv := httpapi.NewServer(httpapi.Config{
		Reconciler:  rec,
		Store:       st,
		Telemetry:   tel,
		BearerToken: cfg.BearerToken,
	})

	httpServer := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
	metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: tel.Metrics.Handler()}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("nclavd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsListen).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	return nil
}
