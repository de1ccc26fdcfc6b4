package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stockagent/internal/config"
	"stockagent/internal/httpx"
	"stockagent/internal/provider/batch"
	"stockagent/internal/provider/cache"
	"stockagent/internal/provider/fmp"
	"stockagent/internal/provider/ratelimit"
	"stockagent/internal/quote"
)

// One-shot fetch for inspection and smoke-testing the provider setup
// without running the server.
func main() {
	var symbolsCSV string
	var timeout int
	var configPath string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL"), "comma-separated ticker symbols (max 10)")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Provider.APIKey == "" {
		log.Println("warning: FMP_API_KEY not set; requests will likely be rejected")
	}

	httpClient := httpx.New(time.Duration(cfg.Provider.TimeoutSec) * time.Second)
	fetcher := fmp.New(fmp.Config{
		Name:            cfg.Provider.Name,
		BaseURL:         cfg.Provider.Endpoint,
		FallbackBaseURL: cfg.Provider.FallbackEndpoint,
		APIKey:          cfg.Provider.APIKey,
		Timeout:         time.Duration(cfg.Provider.TimeoutSec) * time.Second,
	}, fmp.WithHTTPClient(httpClient.HTTP))

	bucket := ratelimit.NewTokenBucket(cfg.Provider.RateLimit,
		time.Duration(cfg.Provider.RateWindowSec)*time.Second)
	c := cache.New(time.Duration(cfg.Provider.CacheTTLSec)*time.Second, bucket)
	coordinator := batch.New(c, fetcher)

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	quotes, err := coordinator.FetchBatch(ctx, symbols)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}

	failed := 0
	for _, q := range quotes {
		if q.Failed() {
			failed++
			log.Printf("%s: %s (%s)", q.Symbol, q.Error, q.ErrorKind)
		}
	}
	log.Printf("%s: %d quotes, %d failed", fetcher.Name(), len(quotes), failed)

	out := struct {
		Quotes []quote.Quote `json:"quotes"`
	}{Quotes: quotes}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
