package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`

	DB       DatabaseOptions
	Redis    RedisOptions
	Import   ImportOptions
	Backfill BackfillOptions

	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"0s"`

	// per client IP on the import and backfill triggers
	RateLimitPerSecond float64 `env:"HTTP_RATE_LIMIT" envDefault:"1"`
	RateLimitBurst     int     `env:"HTTP_RATE_BURST" envDefault:"5"`
}

type DatabaseOptions struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"flightlog.db"`
	Host       string `env:"PG_HOST" envDefault:"localhost"`
	Port       string `env:"PG_PORT" envDefault:"5432"`
	User       string `env:"PG_USER" envDefault:"postgres"`
	Name       string `env:"PG_DB" envDefault:"flightlog"`
	Password   string `env:"PG_PASSWORD"`
}

// DSN returns the postgres connection string.
func (o DatabaseOptions) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", o.User, o.Password, o.Host, o.Port, o.Name)
}

type RedisOptions struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
}

type ImportOptions struct {
	BatchSize         int      `env:"IMPORT_BATCH_SIZE" envDefault:"25"`
	StartRow          int      `env:"IMPORT_START_ROW" envDefault:"5"`
	EmptyRunThreshold int      `env:"IMPORT_EMPTY_RUN_THRESHOLD" envDefault:"50000"`
	LookAheadWindow   int      `env:"IMPORT_LOOKAHEAD_WINDOW" envDefault:"50000"`
	LayoutFile        string   `env:"IMPORT_LAYOUT_FILE"`
	SourceDir         string   `env:"IMPORT_SOURCE_DIR" envDefault:"imports"`
	CrewPrefixes      []string `env:"IMPORT_CREW_PREFIXES" envSeparator:"," envDefault:"пилот,pilot"`
	Concurrency       int      `env:"IMPORT_CONCURRENCY" envDefault:"2"`
}

type BackfillOptions struct {
	BatchSize       int           `env:"BACKFILL_BATCH_SIZE" envDefault:"500"`
	Interval        time.Duration `env:"BACKFILL_INTERVAL" envDefault:"5m"`
	SweepsPerSecond float64       `env:"BACKFILL_SWEEPS_PER_SECOND" envDefault:"2"`
	Stream          string        `env:"BACKFILL_STREAM" envDefault:"flightlog:backfill"`
}

// Load reads .env files (when present) and parses the environment into a Config.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.StartRow < 1 {
		return fmt.Errorf("IMPORT_START_ROW must be >= 1, got %d", c.Import.StartRow)
	}
	if c.Backfill.BatchSize <= 0 {
		return fmt.Errorf("BACKFILL_BATCH_SIZE must be positive, got %d", c.Backfill.BatchSize)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
