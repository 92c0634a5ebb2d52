package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces every environment variable consumed by the screener.
const envPrefix = "JQS"

// Config is the complete configuration for one screening run. It is built
// once at process start and passed by value into component constructors;
// no component reads ambient state.
type Config struct {
	JQuants JQuantsConfig `yaml:"jquants" envconfig:"JQUANTS"`
	Screen  ScreenConfig  `yaml:"screen" envconfig:"SCREEN"`
	Fetch   FetchConfig   `yaml:"fetch" envconfig:"FETCH"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// JQuantsConfig carries the remote service endpoint and credentials.
type JQuantsConfig struct {
	BaseURL  string `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Email    string `yaml:"email" envconfig:"EMAIL" validate:"required,email"`
	Password string `yaml:"password" envconfig:"PASSWORD" validate:"required"`
}

// ScreenConfig holds the screening thresholds.
type ScreenConfig struct {
	PBRMax            float64 `yaml:"pbr_max" envconfig:"PBR_MAX" validate:"gt=0"`
	YieldMinPct       float64 `yaml:"yield_min_pct" envconfig:"YIELD_MIN_PCT" validate:"gte=0"`
	MarketCapMin      float64 `yaml:"market_cap_min" envconfig:"MARKET_CAP_MIN" validate:"gte=0"`
	DividendYears     int     `yaml:"dividend_years" envconfig:"DIVIDEND_YEARS" validate:"min=1"`
	StatementScanDays int     `yaml:"statement_scan_days" envconfig:"STATEMENT_SCAN_DAYS" validate:"min=1"`
}

// FetchConfig holds the retry and pacing policy for the resilient fetcher.
// The backoff units are policy, not a verified service contract; they
// default to the values the remote service has tolerated in practice.
type FetchConfig struct {
	MaxAttempts        int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=1"`
	RateLimitBackoff   time.Duration `yaml:"rate_limit_backoff" envconfig:"RATE_LIMIT_BACKOFF" validate:"gt=0"`
	ServerErrorBackoff time.Duration `yaml:"server_error_backoff" envconfig:"SERVER_ERROR_BACKOFF" validate:"gt=0"`
	TransportBackoff   time.Duration `yaml:"transport_backoff" envconfig:"TRANSPORT_BACKOFF" validate:"gt=0"`
	PageDelay          time.Duration `yaml:"page_delay" envconfig:"PAGE_DELAY" validate:"gte=0"`
	ProbeDelay         time.Duration `yaml:"probe_delay" envconfig:"PROBE_DELAY" validate:"gte=0"`
	AuthTimeout        time.Duration `yaml:"auth_timeout" envconfig:"AUTH_TIMEOUT" validate:"gt=0"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	DateSearchDays     int           `yaml:"date_search_days" envconfig:"DATE_SEARCH_DAYS" validate:"min=1"`
}

// PathsConfig holds file system locations for input and output artifacts.
type PathsConfig struct {
	HoldingsFile string `yaml:"holdings_file" envconfig:"HOLDINGS_FILE"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the optional YAML file at configPath, then JQS_* environment
// variables. The result is validated before being returned.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		if err := loadFromFile(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDefaults fills any field left zero by both the file and the
// environment.
func (c *Config) applyDefaults() {
	if c.JQuants.BaseURL == "" {
		c.JQuants.BaseURL = "https://api.jquants.com/v1"
	}

	if c.Screen.PBRMax == 0 {
		c.Screen.PBRMax = 1.5
	}
	if c.Screen.YieldMinPct == 0 {
		c.Screen.YieldMinPct = 2.5
	}
	if c.Screen.MarketCapMin == 0 {
		c.Screen.MarketCapMin = 10_000_000_000
	}
	if c.Screen.DividendYears == 0 {
		c.Screen.DividendYears = 3
	}
	if c.Screen.StatementScanDays == 0 {
		c.Screen.StatementScanDays = 120
	}

	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = 4
	}
	if c.Fetch.RateLimitBackoff == 0 {
		c.Fetch.RateLimitBackoff = 60 * time.Second
	}
	if c.Fetch.ServerErrorBackoff == 0 {
		c.Fetch.ServerErrorBackoff = 10 * time.Second
	}
	if c.Fetch.TransportBackoff == 0 {
		c.Fetch.TransportBackoff = 10 * time.Second
	}
	if c.Fetch.PageDelay == 0 {
		c.Fetch.PageDelay = 200 * time.Millisecond
	}
	if c.Fetch.ProbeDelay == 0 {
		c.Fetch.ProbeDelay = 300 * time.Millisecond
	}
	if c.Fetch.AuthTimeout == 0 {
		c.Fetch.AuthTimeout = 30 * time.Second
	}
	if c.Fetch.RequestTimeout == 0 {
		c.Fetch.RequestTimeout = 60 * time.Second
	}
	if c.Fetch.DateSearchDays == 0 {
		c.Fetch.DateSearchDays = 14
	}

	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = "data/output"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/screener.log"
	}
}

// Validate checks the configuration structurally. Credential values are
// only checked for presence; the remote service verifies them at
// authentication time.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if invalid, ok := err.(*validator.InvalidValidationError); ok {
			return invalid
		}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			return fmt.Errorf("invalid value for %s (rule %s)", fieldErr.Namespace(), fieldErr.Tag())
		}
	}
	return nil
}
