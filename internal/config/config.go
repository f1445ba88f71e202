// Package config loads sitescope configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/sitescope/internal/fingerprint"
	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SITESCOPE_SERVER_PORT.
const EnvPrefix = "SITESCOPE"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	FetchLog  FetchLogConfig  `mapstructure:"fetchlog"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RateLimitConfig configures per-client admission on the report endpoint.
type RateLimitConfig struct {
	MaxTokens     int           `mapstructure:"max_tokens"`
	RefillRate    int           `mapstructure:"refill_rate"`
	Interval      time.Duration `mapstructure:"interval"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type CacheConfig struct {
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ProviderConfig is shared by the keyed upstream APIs. RPS paces outbound
// calls; zero disables pacing.
type ProviderConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RPS      float64       `mapstructure:"rps"`
}

type SERPConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Location       string `mapstructure:"location"`
}

type SearchConsoleConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RPS      float64       `mapstructure:"rps"`
	// StartDate (YYYY-MM-DD) pins the start of the analytics window. Empty
	// means a rolling 90 day window.
	StartDate string `mapstructure:"start_date"`
}

type ProvidersConfig struct {
	PageSpeed     ProviderConfig      `mapstructure:"pagespeed"`
	SERP          SERPConfig          `mapstructure:"serp"`
	PageRank      ProviderConfig      `mapstructure:"pagerank"`
	SearchConsole SearchConsoleConfig `mapstructure:"searchconsole"`
}

// CrawlerConfig configures the page crawl and sitemap discovery.
type CrawlerConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SitemapTimeout time.Duration `mapstructure:"sitemap_timeout"`
	MaxSitemapURLs int           `mapstructure:"max_sitemap_urls"`
	RPS            float64       `mapstructure:"rps"`
	Jitter         float64       `mapstructure:"jitter"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MinRequests         uint32        `mapstructure:"min_requests"`
	FailureRatio        float64       `mapstructure:"failure_ratio"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RecommendConfig struct {
	// Seed fixes the estimate source. Zero seeds from the clock.
	Seed uint64 `mapstructure:"seed"`
}

// FetchLogConfig selects the fetch log backend: none, sqlite, postgres or
// json. DSN is a file path for sqlite and json.
type FetchLogConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// MetricsConfig moves /metrics to its own port when Port is non-zero.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads configuration. An empty path looks for sitescope.yaml in the
// working directory; a missing file is not an error unless path was given.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sitescope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("ratelimit.max_tokens", 10)
	v.SetDefault("ratelimit.refill_rate", 10)
	v.SetDefault("ratelimit.interval", "1m")
	v.SetDefault("ratelimit.sweep_interval", "5m")

	v.SetDefault("cache.max_size", 50)
	v.SetDefault("cache.ttl", "15m")

	v.SetDefault("providers.pagespeed.endpoint", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("providers.pagespeed.timeout", "60s")
	v.SetDefault("providers.serp.endpoint", "https://serpapi.com/search")
	v.SetDefault("providers.serp.location", "United States")
	v.SetDefault("providers.serp.timeout", "15s")
	v.SetDefault("providers.pagerank.endpoint", "https://openpagerank.com/api/v1.0/getPageRank")
	v.SetDefault("providers.pagerank.timeout", "10s")
	v.SetDefault("providers.searchconsole.endpoint", "https://www.googleapis.com/webmasters/v3/sites")
	v.SetDefault("providers.searchconsole.timeout", "20s")
	v.SetDefault("providers.searchconsole.start_date", "")

	v.SetDefault("crawler.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("crawler.max_redirects", 5)
	v.SetDefault("crawler.timeout", "10s")
	v.SetDefault("crawler.sitemap_timeout", "5s")
	v.SetDefault("crawler.max_sitemap_urls", 50)
	v.SetDefault("crawler.rps", 2)
	v.SetDefault("crawler.jitter", 0.2)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "1m")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.min_requests", 5)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("breaker.consecutive_failures", 5)

	v.SetDefault("recommend.seed", 0)

	v.SetDefault("fetchlog.backend", "none")
	v.SetDefault("fetchlog.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.port", 0)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional key variables. The prefixed form is checked first.
	_ = v.BindEnv("providers.pagespeed.api_key", EnvPrefix+"_PROVIDERS_PAGESPEED_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("providers.serp.api_key", EnvPrefix+"_PROVIDERS_SERP_API_KEY", "SERPAPI_KEY")
	_ = v.BindEnv("providers.pagerank.api_key", EnvPrefix+"_PROVIDERS_PAGERANK_API_KEY", "OPENPAGERANK_API_KEY")
	_ = v.BindEnv("crawler.user_agent", EnvPrefix+"_CRAWLER_USER_AGENT", "USER_AGENT")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Metrics.Port >= 0 && c.Metrics.Port < 65536, "metrics.port %d out of range", c.Metrics.Port)
	check(c.Metrics.Port == 0 || c.Metrics.Port != c.Server.Port, "metrics.port must differ from server.port")
	check(c.RateLimit.MaxTokens > 0, "ratelimit.max_tokens must be positive")
	check(c.RateLimit.RefillRate > 0, "ratelimit.refill_rate must be positive")
	check(c.RateLimit.Interval > 0, "ratelimit.interval must be positive")
	check(c.Cache.MaxSize > 0, "cache.max_size must be positive")
	check(c.Cache.TTL > 0, "cache.ttl must be positive")
	check(c.Crawler.MaxRedirects >= 0, "crawler.max_redirects must not be negative")
	check(c.Crawler.MaxSitemapURLs > 0, "crawler.max_sitemap_urls must be positive")
	check(c.Crawler.Jitter >= 0 && c.Crawler.Jitter <= 1, "crawler.jitter must be within [0, 1]")
	check(c.Breaker.FailureRatio > 0 && c.Breaker.FailureRatio <= 1, "breaker.failure_ratio must be within (0, 1]")
	check(c.Breaker.ConsecutiveFailures > 0, "breaker.consecutive_failures must be positive")

	if _, err := fingerprint.ParseProfile(c.Crawler.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("crawler.fingerprint: %w", err))
	}
	kind, err := storage.ParseKind(c.FetchLog.Backend)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetchlog.backend: %w", err))
	} else if kind != storage.KindNone && c.FetchLog.DSN == "" {
		errs = append(errs, fmt.Errorf("fetchlog.dsn is required for backend %q", kind))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or text", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
