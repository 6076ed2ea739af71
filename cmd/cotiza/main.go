package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	serveradapter "github.com/hylla/cotiza/internal/adapters/server"
	"github.com/hylla/cotiza/internal/adapters/server/common"
	"github.com/hylla/cotiza/internal/adapters/storage/postgres"
	"github.com/hylla/cotiza/internal/adapters/storage/sqlite"
	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/config"
	"github.com/hylla/cotiza/internal/domain"
	"github.com/hylla/cotiza/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// Environment variables read before config is loaded.
const (
	envConfigPath = "COTIZA_CONFIG"
	envDevMode    = "COTIZA_DEV_MODE"
	envAppName    = "COTIZA_APP_NAME"
)

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	// A missing .env is not an error.
	_ = godotenv.Load()

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	tenant     string
	devMode    bool
	jsonOutput bool
}

// newRootCommand builds the command tree. The root command opens the board.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{appName: "cotiza", devMode: version == "dev"}
	if envDev, ok := parseBoolEnv(envDevMode); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv(envAppName)); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "cotiza",
		Short:         "Quotes with gap-tolerant numbering and a status board",
		Long:          "cotiza keeps per-tenant quote numbering, a catalog of clients and products, and a drag-and-drop status board.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, true, runBoard)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.tenant, "tenant", "", "tenant id (defaults to [tenant] default_id)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newPathsCommand(opts, stdout),
		&cobra.Command{
			Use:   "board",
			Short: "Open the quote status board",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, opts, stderr, true, runBoard)
			},
		},
		newServeCommand(opts, stderr),
		newTenantCommand(opts, stdout, stderr),
		newClientCommand(opts, stdout, stderr),
		newProductCommand(opts, stdout, stderr),
		newQuoteCommand(opts, stdout, stderr),
		newInsightsCommand(opts, stdout, stderr),
	)
	return root
}

// newPathsCommand prints resolved runtime paths without opening storage.
func newPathsCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", opts.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(stdout, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			return nil
		},
	}
}

// resolveConfigPath picks the flag, then COTIZA_CONFIG, then the platform default.
func (o *globalOptions) resolveConfigPath(paths platform.Paths) string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv(envConfigPath)); path != "" {
		return path
	}
	return paths.ConfigPath
}

// loadUserEnv reads the per-user dotenv file when present. Variables already
// set, including those from a working-directory .env, take precedence.
func loadUserEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// store is the storage surface shared by the sqlite and postgres repositories.
type store interface {
	app.Repository
	Ping(context.Context) error
	Close() error
}

// runtimeEnv holds the opened dependencies for one command.
type runtimeEnv struct {
	opts       *globalOptions
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       store
	svc        *app.Service
	api        *common.AppServiceAdapter
	tenantID   string
}

// withRuntime opens config, logging and storage, runs fn and releases them.
func withRuntime(cmd *cobra.Command, opts *globalOptions, stderr io.Writer, interactive bool, fn func(context.Context, *runtimeEnv) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := openRuntime(ctx, opts, stderr, interactive)
	if err != nil {
		return err
	}
	defer env.Close(stderr)

	name := cmd.CommandPath()
	env.logger.Info("command flow start", "command", name)
	if err := fn(ctx, env); err != nil {
		env.logger.Error("command flow failed", "command", name, "err", err)
		return err
	}
	env.logger.Info("command flow complete", "command", name)
	return nil
}

// openRuntime resolves config and opens the configured repository.
func openRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer, interactive bool) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}
	configPath := opts.resolveConfigPath(paths)
	if err := loadUserEnv(paths.EnvPath); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if dbPath := strings.TrimSpace(opts.dbPath); dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}
	if tenant := strings.TrimSpace(opts.tenant); tenant != "" {
		cfg.Tenant.DefaultID = tenant
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if interactive {
		// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
		logger.SetConsoleEnabled(false)
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir)
	logger.Info("configuration loaded", "config_path", configPath, "driver", cfg.Database.Driver, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	taxRate, _ := cfg.Quotes.TaxRateDecimal()
	maxAge, _ := cfg.Insights.MaxAgeDuration()
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		NumberFormat: domain.NumberFormat{Prefix: cfg.Quotes.NumberPrefix, Width: cfg.Quotes.NumberWidth},
		TaxRate:      taxRate,
		ValidityDays: cfg.Quotes.ValidityDays,
		Logger:       logger.Sink(),
	})
	cache := app.NewInsightCache(repo, nil, nil, app.InsightCacheConfig{
		MaxAge:         maxAge,
		DriftThreshold: cfg.Insights.DriftThreshold,
	})
	logger.Debug("application service initialized", "number_prefix", cfg.Quotes.NumberPrefix, "tax_rate", taxRate.String())

	return &runtimeEnv{
		opts:       opts,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
		api:        common.NewAppServiceAdapter(svc, cache),
		tenantID:   cfg.Tenant.DefaultID,
	}, nil
}

// openStore opens the repository selected by [database] driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *runtimeLogger) (store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("opening postgres repository")
		repo, err := postgres.Open(ctx, cfg.DSN, postgres.Options{TxRetries: cfg.TxRetries})
		if err != nil {
			logger.Error("postgres open failed", "err", err)
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		logger.Info("postgres repository ready", "migrations", "ensured")
		return repo, nil
	default:
		logger.Info("opening sqlite repository", "db_path", cfg.Path)
		repo, err := sqlite.Open(cfg.Path, sqlite.Options{TxRetries: cfg.TxRetries})
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Info("sqlite repository ready", "db_path", cfg.Path, "migrations", "ensured")
		return repo, nil
	}
}

// Close releases storage and log sinks.
func (e *runtimeEnv) Close(stderr io.Writer) {
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("repository close failed", "err", err)
	}
	if err := e.logger.Close(); err != nil && e.logger.ConsoleEnabled() {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// requireTenant returns the tenant flag or the configured default.
func (e *runtimeEnv) requireTenant() (string, error) {
	if tenant := strings.TrimSpace(e.tenantID); tenant != "" {
		return tenant, nil
	}
	return "", errors.New("a tenant is required: pass --tenant or set [tenant] default_id")
}

// parseBoolEnv parses one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
