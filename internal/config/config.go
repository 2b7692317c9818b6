// Package config handles configuration loading for fredcycle.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	FRED       FREDConfig        `mapstructure:"fred"       yaml:"fred"`
	Indicators []IndicatorConfig `mapstructure:"indicators" yaml:"indicators"`
	Periods    []PeriodConfig    `mapstructure:"periods"    yaml:"periods"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"   yaml:"pipeline"`
	Store      StoreConfig       `mapstructure:"store"      yaml:"store"`
	Report     ReportConfig      `mapstructure:"report"     yaml:"report"`
	Analysis   AnalysisConfig    `mapstructure:"analysis"   yaml:"analysis"`
	API        APIConfig         `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig     `mapstructure:"logging"    yaml:"logging"`
}

// FREDConfig holds FRED API access settings.
type FREDConfig struct {
	APIKey           string `mapstructure:"api_key"           yaml:"api_key"`
	BaseURL          string `mapstructure:"base_url"          yaml:"base_url"`
	ObservationStart string `mapstructure:"observation_start" yaml:"observation_start"` // YYYY-MM-DD
	RateLimit        int    `mapstructure:"rate_limit"        yaml:"rate_limit"`        // requests per minute
	CacheTTL         int    `mapstructure:"cache_ttl"         yaml:"cache_ttl"`         // seconds
	Timeout          int    `mapstructure:"timeout"           yaml:"timeout"`           // seconds
}

// IndicatorConfig maps a column name to a FRED series.
// An empty list means the built-in catalog.
type IndicatorConfig struct {
	Name        string `mapstructure:"name"        yaml:"name"`
	ID          string `mapstructure:"id"          yaml:"id"`
	Title       string `mapstructure:"title"       yaml:"title"`
	Description string `mapstructure:"description" yaml:"description"`
	Frequency   string `mapstructure:"frequency"   yaml:"frequency"`
}

// PeriodConfig is one named date interval. End is empty for an open interval.
type PeriodConfig struct {
	Label string `mapstructure:"label" yaml:"label"`
	Start string `mapstructure:"start" yaml:"start"`
	End   string `mapstructure:"end"   yaml:"end"`
	Color string `mapstructure:"color" yaml:"color"`
}

// PipelineConfig holds the feature pipeline settings.
type PipelineConfig struct {
	StartDate         string   `mapstructure:"start_date"          yaml:"start_date"`
	DefaultPeriod     string   `mapstructure:"default_period"      yaml:"default_period"`
	DefaultColor      string   `mapstructure:"default_color"       yaml:"default_color"`
	GrowthSource      string   `mapstructure:"growth_source"       yaml:"growth_source"`
	GrowthColumn      string   `mapstructure:"growth_column"       yaml:"growth_column"`
	GrowthLagQuarters int      `mapstructure:"growth_lag_quarters" yaml:"growth_lag_quarters"`
	SpreadSource      string   `mapstructure:"spread_source"       yaml:"spread_source"`
	SpreadColumn      string   `mapstructure:"spread_column"       yaml:"spread_column"`
	SpreadOp          string   `mapstructure:"spread_op"           yaml:"spread_op"` // "mean", "std", "last"
	ForwardBase       string   `mapstructure:"forward_base"        yaml:"forward_base"`
	Horizons          []int    `mapstructure:"horizons"            yaml:"horizons"` // months
	FillColumns       []string `mapstructure:"fill_columns"        yaml:"fill_columns"`
}

// StoreConfig holds the local observation cache settings.
type StoreConfig struct {
	Path   string `mapstructure:"path"    yaml:"path"`    // empty disables the store
	MaxAge int    `mapstructure:"max_age" yaml:"max_age"` // hours
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Format    string `mapstructure:"format"     yaml:"format"`     // "html", "pdf" or "text"
	PDFEngine string `mapstructure:"pdf_engine" yaml:"pdf_engine"` // "wkhtmltopdf", "chromium" or empty for auto
	Title     string `mapstructure:"title"      yaml:"title"`
	Author    string `mapstructure:"author"     yaml:"author"`
}

// AnalysisConfig holds data loading settings.
type AnalysisConfig struct {
	ConcurrentFetches int  `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches"`
	Offline           bool `mapstructure:"offline"            yaml:"offline"` // serve from the store only
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fredcycle/config.yaml (home directory)
//  3. /etc/fredcycle/config.yaml (system)
//
// Environment variables override config file values.
// Format: FREDCYCLE_<SECTION>_<KEY>, e.g., FREDCYCLE_FRED_API_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fredcycle"))
	v.AddConfigPath("/etc/fredcycle")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FREDCYCLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
// Indicators and periods have no viper defaults; the catalog fills them in.
func setDefaults(v *viper.Viper) {
	// FRED defaults
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.observation_start", "1976-01-01")
	v.SetDefault("fred.rate_limit", 120)
	v.SetDefault("fred.cache_ttl", 3600) // 1 hour
	v.SetDefault("fred.timeout", 30)

	// Pipeline defaults
	v.SetDefault("pipeline.start_date", "1996-12-31")
	v.SetDefault("pipeline.default_period", "Expansion")
	v.SetDefault("pipeline.default_color", "#2E86C1")
	v.SetDefault("pipeline.growth_source", "gdp")
	v.SetDefault("pipeline.growth_column", "gdp_growth")
	v.SetDefault("pipeline.growth_lag_quarters", 4)
	v.SetDefault("pipeline.spread_source", "option_adjusted_spread")
	v.SetDefault("pipeline.spread_column", "quarterly_spread")
	v.SetDefault("pipeline.spread_op", "mean")
	v.SetDefault("pipeline.forward_base", "delinquency_rate_loans")
	v.SetDefault("pipeline.horizons", []int{3, 6, 9, 12, 18, 24})
	v.SetDefault("pipeline.fill_columns", []string{"delinquency_rate_credit_cards", "delinquency_rate_loans"})

	// Store defaults
	v.SetDefault("store.path", "")
	v.SetDefault("store.max_age", 24)

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.format", "html")
	v.SetDefault("report.title", "Credit Spreads and Delinquency")

	// Analysis defaults
	v.SetDefault("analysis.concurrent_fetches", 4)
	v.SetDefault("analysis.offline", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// FREDCYCLE_FRED_API_KEY wins over the conventional FRED_API_KEY.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("FRED_API_KEY"); key != "" {
		cfg.FRED.APIKey = key
	}
	if key := os.Getenv("FREDCYCLE_FRED_API_KEY"); key != "" {
		cfg.FRED.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
