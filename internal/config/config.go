package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"stockagent/internal/news"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Provider struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	// FallbackEndpoint is an optional secondary host of the same
	// provider, tried once on transport-level failures.
	FallbackEndpoint string `json:"fallback_endpoint"`
	APIKey           string `json:"api_key"`
	TimeoutSec       int    `json:"timeout_sec"`
	// RateLimit and RateWindowSec describe the provider call budget:
	// at most RateLimit calls per window.
	RateLimit     int `json:"rate_limit"`
	RateWindowSec int `json:"rate_window_sec"`
	CacheTTLSec   int `json:"cache_ttl_sec"`
}

type Database struct {
	URL string `json:"url"`
}

type News struct {
	Enabled          bool              `json:"enabled"`
	Feeds            []news.FeedConfig `json:"feeds"`
	FetchIntervalMin int               `json:"fetch_interval_min"`
}

type Logging struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

type Config struct {
	Server   Server   `json:"server"`
	Provider Provider `json:"provider"`
	Database Database `json:"database"`
	News     News     `json:"news"`
	Logging  Logging  `json:"logging"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		Provider: Provider{
			Name:          "FMP",
			Endpoint:      "https://financialmodelingprep.com/api/v3",
			TimeoutSec:    10,
			RateLimit:     5,
			RateWindowSec: 60,
			CacheTTLSec:   3600,
		},
		Database: Database{URL: "stockagent.db"},
		News: News{
			Enabled:          true,
			FetchIntervalMin: 15,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("FMP_ENDPOINT"); v != "" {
		cfg.Provider.Endpoint = v
	}
	if v := os.Getenv("FMP_FALLBACK_ENDPOINT"); v != "" {
		cfg.Provider.FallbackEndpoint = v
	}
	if v := os.Getenv("FMP_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.TimeoutSec = x
		}
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.RateLimit = x
		}
	}
	if v := os.Getenv("RATE_WINDOW_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.RateWindowSec = x
		}
	}
	if v := os.Getenv("CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.CacheTTLSec = x
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("NEWS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.News.Enabled = true
		case "0", "false", "no", "n":
			cfg.News.Enabled = false
		}
	}
	if v := os.Getenv("NEWS_FETCH_INTERVAL_MIN"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.News.FetchIntervalMin = x
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Logging.Pretty = true
		case "0", "false", "no", "n":
			cfg.Logging.Pretty = false
		}
	}
}
