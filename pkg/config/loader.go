package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "PRICECOMPARE_"

// Load merges the TOML file at path over Defaults and applies PRICECOMPARE_*
// environment overrides. An empty path skips the file. The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Origin.Domain, envPrefix+"ORIGIN_DOMAIN")
	setStr(&cfg.Origin.Currency, envPrefix+"ORIGIN_CURRENCY")

	setStr(&cfg.Scraper.Scheme, envPrefix+"SCRAPER_SCHEME")
	if ua := os.Getenv(envPrefix + "SCRAPER_USER_AGENT"); ua != "" {
		if cfg.Scraper.Headers == nil {
			cfg.Scraper.Headers = map[string]string{}
		}
		cfg.Scraper.Headers["User-Agent"] = ua
	}
	setDuration(&cfg.Scraper.FetchTimeout, envPrefix+"SCRAPER_FETCH_TIMEOUT")
	setInt(&cfg.Scraper.Parallelism, envPrefix+"SCRAPER_PARALLELISM")

	setInt(&cfg.Match.Threshold, envPrefix+"MATCH_THRESHOLD")
	setInt(&cfg.Match.Limit, envPrefix+"MATCH_LIMIT")

	setStr(&cfg.Rates.URL, envPrefix+"RATES_URL")
	setDuration(&cfg.Rates.TTL, envPrefix+"RATES_TTL")

	setStr(&cfg.Redis.Addr, envPrefix+"REDIS_ADDR")
	setStr(&cfg.Redis.Password, envPrefix+"REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, envPrefix+"REDIS_DB")

	setStr(&cfg.Storage.Path, envPrefix+"STORAGE_PATH")

	setInt(&cfg.Limits.DailySearches, envPrefix+"LIMITS_DAILY_SEARCHES")
	setDuration(&cfg.Limits.Window, envPrefix+"LIMITS_WINDOW")

	setInt(&cfg.Server.Port, envPrefix+"SERVER_PORT")
	setInt64(&cfg.Server.DefaultUser, envPrefix+"SERVER_DEFAULT_USER")
	setStringSlice(&cfg.Server.CORSOrigins, envPrefix+"SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.PathPrefix, envPrefix+"SERVER_PATH_PREFIX")

	setStr(&cfg.Export.Dir, envPrefix+"EXPORT_DIR")

	setStr(&cfg.LogLevel, envPrefix+"LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
