// Package config loads application configuration and installs the logger.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	OpenData  OpenDataConfig  `yaml:"opendata" mapstructure:"opendata"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Fusion    FusionConfig    `yaml:"fusion" mapstructure:"fusion"`
	Finance   FinanceConfig   `yaml:"finance" mapstructure:"finance"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the polite fetcher.
type FetchConfig struct {
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	MinDelayMs        int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	CacheTTLSecs      int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	RobotsTimeoutSecs int    `yaml:"robots_timeout_secs" mapstructure:"robots_timeout_secs"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// MinDelay returns the per-host minimum request gap.
func (c FetchConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// CacheTTL returns the content cache lifetime.
func (c FetchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// RobotsTimeout returns the robots.txt fetch timeout.
func (c FetchConfig) RobotsTimeout() time.Duration {
	return time.Duration(c.RobotsTimeoutSecs) * time.Second
}

// Timeout returns the default page fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// DiscoveryConfig configures candidate URL discovery.
type DiscoveryConfig struct {
	SearchURL      string   `yaml:"search_url" mapstructure:"search_url"`
	Sites          []string `yaml:"sites" mapstructure:"sites"`
	ResultSelector string   `yaml:"result_selector" mapstructure:"result_selector"`
	MinResults     int      `yaml:"min_results" mapstructure:"min_results"`
	MaxResults     int      `yaml:"max_results" mapstructure:"max_results"`
	ExcludePaths   []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	CountryCodes string  `yaml:"country_codes" mapstructure:"country_codes"`
	Limit        int     `yaml:"limit" mapstructure:"limit"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenDataConfig configures the NSW cadastre lookup.
type OpenDataConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	Confidence          float64 `yaml:"confidence" mapstructure:"confidence"`
	FallbackLandSqm     float64 `yaml:"fallback_land_sqm" mapstructure:"fallback_land_sqm"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// PipelineConfig configures a research run.
type PipelineConfig struct {
	AllowWebFetch         bool    `yaml:"allow_web_fetch" mapstructure:"allow_web_fetch"`
	MaxCandidates         int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	BudgetSecs            int     `yaml:"budget_secs" mapstructure:"budget_secs"`
	AddressMatchThreshold float64 `yaml:"address_match_threshold" mapstructure:"address_match_threshold"`
}

// Budget returns the wall-clock budget of one run.
func (c PipelineConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSecs) * time.Second
}

// FusionConfig points at an optional YAML policy table overriding the
// default tier order.
type FusionConfig struct {
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`
}

// FinanceConfig holds default finance inputs for the calculators.
type FinanceConfig struct {
	DepositPct      float64 `yaml:"deposit_pct" mapstructure:"deposit_pct"`
	VariableRatePct float64 `yaml:"variable_rate_pct" mapstructure:"variable_rate_pct"`
	FixedRatePct    float64 `yaml:"fixed_rate_pct" mapstructure:"fixed_rate_pct"`
	RateType        string  `yaml:"rate_type" mapstructure:"rate_type"`
	RepaymentType   string  `yaml:"repayment_type" mapstructure:"repayment_type"`
	TermYears       int     `yaml:"term_years" mapstructure:"term_years"`
	PMFeePct        float64 `yaml:"pm_fee_pct" mapstructure:"pm_fee_pct"`
	YieldPct        float64 `yaml:"yield_pct" mapstructure:"yield_pct"`
	Risk            string  `yaml:"risk" mapstructure:"risk"`
	OwnerOccupier   bool    `yaml:"owner_occupier" mapstructure:"owner_occupier"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultSites are the listing portals searched by default.
var DefaultSites = []string{
	"realestate.com.au",
	"domain.com.au",
	"onthehouse.com.au",
	"realty.com.au",
	"propertyvalue.com.au",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.user_agent", "PropLens/0.1 (+https://example.com)")
	v.SetDefault("fetch.min_delay_ms", 2000)
	v.SetDefault("fetch.cache_ttl_secs", 600)
	v.SetDefault("fetch.robots_timeout_secs", 10)
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_body_bytes", 5<<20)

	v.SetDefault("discovery.search_url", "https://duckduckgo.com/html/")
	v.SetDefault("discovery.sites", DefaultSites)
	v.SetDefault("discovery.result_selector", "a.result__a")
	v.SetDefault("discovery.min_results", 6)
	v.SetDefault("discovery.max_results", 8)
	v.SetDefault("discovery.exclude_paths", []string{
		"/news/*", "/blog/*", "/advice/*", "/guides/*", "/insights/*",
		"/agent/*", "/agents/*", "/agency/*", "/real-estate-agents/*",
		"/find-agent/*", "/neighbourhoods/*",
	})

	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.country_codes", "au")
	v.SetDefault("geocode.limit", 5)
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.timeout_secs", 20)

	v.SetDefault("opendata.enabled", true)
	v.SetDefault("opendata.base_url", "https://maps.six.nsw.gov.au/arcgis/rest/services/public/NSW_Cadastre/MapServer/9/query")
	v.SetDefault("opendata.confidence", 0.6)
	v.SetDefault("opendata.fallback_land_sqm", 420.0)
	v.SetDefault("opendata.timeout_secs", 15)
	v.SetDefault("opendata.max_attempts", 2)
	v.SetDefault("opendata.initial_backoff_ms", 500)
	v.SetDefault("opendata.breaker_threshold", 3)
	v.SetDefault("opendata.breaker_cooldown_secs", 60)

	v.SetDefault("pipeline.allow_web_fetch", true)
	v.SetDefault("pipeline.max_candidates", 8)
	v.SetDefault("pipeline.budget_secs", 120)
	v.SetDefault("pipeline.address_match_threshold", 0.0)

	v.SetDefault("fusion.policy_file", "")

	v.SetDefault("finance.deposit_pct", 20.0)
	v.SetDefault("finance.variable_rate_pct", 6.25)
	v.SetDefault("finance.fixed_rate_pct", 5.85)
	v.SetDefault("finance.rate_type", "variable")
	v.SetDefault("finance.repayment_type", "P&I")
	v.SetDefault("finance.term_years", 30)
	v.SetDefault("finance.pm_fee_pct", 6.0)
	v.SetDefault("finance.yield_pct", 3.6)
	v.SetDefault("finance.risk", "medium")
	v.SetDefault("finance.owner_occupier", true)

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Fetch),
		validation.Field(&c.Discovery),
		validation.Field(&c.Geocode),
		validation.Field(&c.OpenData),
		validation.Field(&c.Pipeline),
		validation.Field(&c.Finance),
		validation.Field(&c.Server),
		validation.Field(&c.Log),
	)
}

// Validate checks the fetch section.
func (c FetchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.MinDelayMs, validation.Min(0)),
		validation.Field(&c.CacheTTLSecs, validation.Min(0)),
		validation.Field(&c.RobotsTimeoutSecs, validation.Required, validation.Min(1)),
		validation.Field(&c.TimeoutSecs, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxBodyBytes, validation.Required, validation.Min(int64(1024))),
	)
}

// Validate checks the discovery section.
func (c DiscoveryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SearchURL, validation.Required, is.URL),
		validation.Field(&c.Sites, validation.Required, validation.Each(validation.Required, is.Domain)),
		validation.Field(&c.ResultSelector, validation.Required),
		validation.Field(&c.MinResults, validation.Required, validation.Min(1), validation.Max(c.MaxResults)),
		validation.Field(&c.MaxResults, validation.Required, validation.Min(1)),
	)
}

// Validate checks the geocode section.
func (c GeocodeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Limit, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&c.RateLimit, validation.Required, validation.Min(0.01)),
	)
}

// Validate checks the open-data section.
func (c OpenDataConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.When(c.Enabled, validation.Required, is.URL)),
		validation.Field(&c.Confidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.FallbackLandSqm, validation.Min(0.0)),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
	)
}

// Validate checks the pipeline section.
func (c PipelineConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxCandidates, validation.Required, validation.Min(1)),
		validation.Field(&c.BudgetSecs, validation.Required, validation.Min(1)),
		validation.Field(&c.AddressMatchThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Validate checks the finance section.
func (c FinanceConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DepositPct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.VariableRatePct, validation.Min(0.0)),
		validation.Field(&c.FixedRatePct, validation.Min(0.0)),
		validation.Field(&c.RateType, validation.In("variable", "fixed")),
		validation.Field(&c.RepaymentType, validation.In("P&I", "IO")),
		validation.Field(&c.TermYears, validation.Required, validation.Min(1), validation.Max(40)),
		validation.Field(&c.PMFeePct, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.YieldPct, validation.Min(0.0)),
		validation.Field(&c.Risk, validation.In("low", "medium", "high")),
	)
}

// Validate checks the server section.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate checks the log section.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Format, validation.In("json", "console")),
	)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
