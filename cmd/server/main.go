package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stockagent/internal/alert"
	"stockagent/internal/api"
	"stockagent/internal/config"
	"stockagent/internal/httpx"
	"stockagent/internal/news"
	"stockagent/internal/provider/batch"
	"stockagent/internal/provider/cache"
	"stockagent/internal/provider/fmp"
	"stockagent/internal/provider/ratelimit"
	"stockagent/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	setupLogging(cfg.Logging)

	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("FMP_API_KEY not set; upstream requests will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer db.Close()

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
	quoteCache := cache.New(time.Duration(cfg.Provider.CacheTTLSec)*time.Second, bucket)
	coordinator := batch.New(quoteCache, fetcher)

	alertStore := alert.NewStore(db)
	newsStore := news.NewStore(db)

	var newsService *news.Service
	if cfg.News.Enabled {
		newsService = news.NewService(cfg.News.Feeds, alertStore, newsStore)
		go newsService.Run(ctx, time.Duration(cfg.News.FetchIntervalMin)*time.Minute)
	}

	handler := api.NewRouter(
		api.NewQuoteHandler(quoteCache, fetcher, coordinator, bucket),
		api.NewAlertHandler(alertStore),
		api.NewNewsHandler(newsStore, newsService),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.Provider.Name).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg config.Logging) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
