package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Driver selects the storage backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Environment variables that override file settings.
const (
	EnvDBPath      = "COTIZA_DB_PATH"
	EnvDatabaseDSN = "COTIZA_DATABASE_DSN"
	EnvTenant      = "COTIZA_TENANT"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Tenant   TenantConfig   `toml:"tenant"`
	Quotes   QuotesConfig   `toml:"quotes"`
	Server   ServerConfig   `toml:"server"`
	Insights InsightsConfig `toml:"insights"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Driver    Driver `toml:"driver"`
	Path      string `toml:"path"`
	DSN       string `toml:"dsn"`
	TxRetries int    `toml:"tx_retries"`
}

type TenantConfig struct {
	DefaultID   string `toml:"default_id"`
	DefaultName string `toml:"default_name"`
}

type QuotesConfig struct {
	NumberPrefix string `toml:"number_prefix"`
	NumberWidth  int    `toml:"number_width"`
	TaxRate      string `toml:"tax_rate"`
	ValidityDays int    `toml:"validity_days"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type InsightsConfig struct {
	MaxAge         string `toml:"max_age"`
	DriftThreshold int    `toml:"drift_threshold"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver:    DriverSQLite,
			Path:      dbPath,
			TxRetries: 5,
		},
		Tenant: TenantConfig{
			DefaultID:   "default",
			DefaultName: "Default",
		},
		Quotes: QuotesConfig{
			NumberPrefix: "COT-",
			NumberWidth:  4,
			TaxRate:      "0.16",
			ValidityDays: 30,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Insights: InsightsConfig{
			MaxAge:         "24h",
			DriftThreshold: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".cotiza/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvDBPath); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDatabaseDSN); ok && strings.TrimSpace(v) != "" {
		c.Database.DSN = strings.TrimSpace(v)
		c.Database.Driver = DriverPostgres
	}
	if v, ok := lookup(EnvTenant); ok && strings.TrimSpace(v) != "" {
		c.Tenant.DefaultID = strings.TrimSpace(v)
	}
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}
	if c.Database.TxRetries < 0 {
		return errors.New("database.tx_retries must be >= 0")
	}

	if strings.TrimSpace(c.Tenant.DefaultID) == "" {
		return errors.New("tenant.default_id is required")
	}

	if c.Quotes.NumberWidth < 1 || c.Quotes.NumberWidth > 18 {
		return fmt.Errorf("quotes.number_width must be between 1 and 18: %d", c.Quotes.NumberWidth)
	}
	if _, err := c.Quotes.TaxRateDecimal(); err != nil {
		return err
	}
	if c.Quotes.ValidityDays < 1 {
		return errors.New("quotes.validity_days must be >= 1")
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("invalid %s: %q", name, endpoint)
		}
	}

	if _, err := c.Insights.MaxAgeDuration(); err != nil {
		return err
	}
	if c.Insights.DriftThreshold < 1 {
		return errors.New("insights.drift_threshold must be >= 1")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// TaxRateDecimal parses quotes.tax_rate as a fraction such as 0.16.
func (q QuotesConfig) TaxRateDecimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(q.TaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("invalid quotes.tax_rate: %q", q.TaxRate)
	}
	return rate, nil
}

// MaxAgeDuration parses insights.max_age.
func (i InsightsConfig) MaxAgeDuration() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(i.MaxAge))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid insights.max_age: %q", i.MaxAge)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
