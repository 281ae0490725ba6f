// Package config defines the pricecompare configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/geniass/pricecompare/pkg/compare"
	"github.com/geniass/pricecompare/pkg/currency"
	"github.com/geniass/pricecompare/pkg/match"
	"github.com/geniass/pricecompare/pkg/scraper"
	"github.com/geniass/pricecompare/pkg/service"
	"github.com/geniass/pricecompare/pkg/web"
)

type Config struct {
	Origin   compare.Mirror   `toml:"origin"`
	Mirrors  []compare.Mirror `toml:"mirrors"`
	Scraper  ScraperConfig    `toml:"scraper"`
	Match    MatchConfig      `toml:"match"`
	Rates    RatesConfig      `toml:"rates"`
	Redis    RedisConfig      `toml:"redis"`
	Storage  StorageConfig    `toml:"storage"`
	Limits   LimitsConfig     `toml:"limits"`
	Server   ServerConfig     `toml:"server"`
	Export   ExportConfig     `toml:"export"`
	LogLevel string           `toml:"log_level"`
}

type ScraperConfig struct {
	// Scheme is "https" for real storefronts.
	Scheme       string            `toml:"scheme"`
	Headers      map[string]string `toml:"headers"`
	FetchTimeout duration          `toml:"fetch_timeout"`
	Parallelism  int               `toml:"parallelism"`
	ErrorPaths   []string          `toml:"error_paths"`
}

type MatchConfig struct {
	Threshold int `toml:"threshold"`
	Limit     int `toml:"limit"`
}

type RatesConfig struct {
	URL string   `toml:"url"`
	TTL duration `toml:"ttl"`
	Key string   `toml:"key"`
}

// RedisConfig enables the shared rate cache when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type LimitsConfig struct {
	// DailySearches of 0 disables the limit.
	DailySearches int      `toml:"daily_searches"`
	Window        duration `toml:"window"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	DefaultUser int64    `toml:"default_user"`
	CORSOrigins []string `toml:"cors_origins"`
	PathPrefix  string   `toml:"path_prefix"`
}

type ExportConfig struct {
	Dir string `toml:"dir"`
}

// duration lets TOML strings such as "15s" or "12h" decode into a
// time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultHeaders is the browser-like header set sent with every storefront
// request. Only gzip is advertised since that is all the transport decodes.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
		"Accept-Language":           "en-US,en;q=0.5",
		"Accept-Encoding":           "gzip",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"TE":                        "Trailers",
	}
}

func Defaults() Config {
	return Config{
		Origin: compare.Mirror{Domain: "www.amazon.com", Currency: "USD"},
		Mirrors: []compare.Mirror{
			{Domain: "www.amazon.co.uk", Currency: "GBP"},
			{Domain: "www.amazon.de", Currency: "EUR"},
			{Domain: "www.amazon.ca", Currency: "CAD"},
		},
		Scraper: ScraperConfig{
			Scheme:       "https",
			Headers:      DefaultHeaders(),
			FetchTimeout: duration{15 * time.Second},
			Parallelism:  4,
			ErrorPaths:   []string{"/errors/validateCaptcha"},
		},
		Match: MatchConfig{
			Threshold: match.DefaultThreshold,
			Limit:     match.DefaultLimit,
		},
		Rates: RatesConfig{
			URL: currency.ECBDailyURL,
			TTL: duration{12 * time.Hour},
			Key: "rates",
		},
		Storage: StorageConfig{Path: "pricecompare.db"},
		Limits: LimitsConfig{
			DailySearches: service.DefaultDailyLimit,
			Window:        duration{service.DefaultWindow},
		},
		Server:   ServerConfig{Port: 8000},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if _, ok := validLogLevels[strings.ToLower(c.LogLevel)]; !ok {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Origin.Domain == "" || c.Origin.Currency == "" {
		errs = append(errs, "origin: domain and currency are required")
	}
	seen := map[string]bool{strings.ToUpper(c.Origin.Currency): true}
	for i, m := range c.Mirrors {
		if m.Domain == "" || m.Currency == "" {
			errs = append(errs, fmt.Sprintf("mirrors[%d]: domain and currency are required", i))
			continue
		}
		code := strings.ToUpper(m.Currency)
		if seen[code] {
			errs = append(errs, fmt.Sprintf("mirrors[%d]: currency %s is configured twice", i, code))
		}
		seen[code] = true
	}

	if s := c.Scraper.Scheme; s != "http" && s != "https" {
		errs = append(errs, fmt.Sprintf("scraper.scheme must be http or https, got %q", s))
	}
	if c.Scraper.FetchTimeout.Duration <= 0 {
		errs = append(errs, "scraper.fetch_timeout must be positive")
	}
	if c.Scraper.Parallelism < 0 {
		errs = append(errs, "scraper.parallelism must not be negative")
	}

	if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
		errs = append(errs, "match.threshold must be between 0 and 100")
	}
	if c.Match.Limit <= 0 {
		errs = append(errs, "match.limit must be positive")
	}

	if c.Rates.URL == "" {
		errs = append(errs, "rates.url is required")
	}
	if c.Rates.TTL.Duration <= 0 {
		errs = append(errs, "rates.ttl must be positive")
	}

	if c.Storage.Path == "" {
		errs = append(errs, "storage.path is required")
	}

	if c.Limits.DailySearches < 0 {
		errs = append(errs, "limits.daily_searches must not be negative")
	}
	if c.Limits.DailySearches > 0 && c.Limits.Window.Duration <= 0 {
		errs = append(errs, "limits.window must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Logger builds a JSON logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, ok := validLogLevels[strings.ToLower(c.LogLevel)]
	if !ok {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *Config) Session() scraper.SessionConfig {
	return scraper.SessionConfig{
		Headers:     c.Scraper.Headers,
		Timeout:     c.Scraper.FetchTimeout.Duration,
		Parallelism: c.Scraper.Parallelism,
		ErrorPaths:  c.Scraper.ErrorPaths,
	}
}

// Comparer assembles the comparer settings around an already built rate
// source.
func (c *Config) Comparer(rates currency.Source, logger *slog.Logger) compare.Config {
	return compare.Config{
		Origin:     c.Origin,
		Mirrors:    c.Mirrors,
		Storefront: scraper.Storefront{Scheme: c.Scraper.Scheme},
		Matcher:    match.NewMatcher(c.Match.Threshold, c.Match.Limit),
		Session:    c.Session(),
		Rates:      rates,
		Logger:     logger,
	}
}

func (c *Config) Service() service.Config {
	return service.Config{
		DailyLimit: c.Limits.DailySearches,
		Window:     c.Limits.Window.Duration,
	}
}

func (c *Config) Web() web.Config {
	return web.Config{
		Port:        c.Server.Port,
		DefaultUser: c.Server.DefaultUser,
		CORSOrigins: c.Server.CORSOrigins,
		PathPrefix:  c.Server.PathPrefix,
	}
}

func (c *Config) RedisCache() currency.RedisConfig {
	return currency.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
