// cmd/advisor/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"business-advisor/internal/common/config"
	"business-advisor/internal/common/database"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/observability"
	"business-advisor/internal/core/cachestore"
	"business-advisor/internal/core/evidence"
	"business-advisor/internal/core/normalize"
	"business-advisor/internal/core/orchestrator"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/core/provider/ai"
	"business-advisor/internal/core/provider/places"
	"business-advisor/internal/core/provider/property"
	"business-advisor/internal/core/provider/websearch"
	"business-advisor/internal/core/ratelimit"
	"business-advisor/internal/core/report"
	"business-advisor/internal/geocode"
	"business-advisor/internal/models"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	location := flag.String("location", "", "free-form location, e.g. \"Sector 70, Mohali\"")
	category := flag.String("category", "", "business category, e.g. \"cafe\"")
	radius := flag.Int("radius", 3000, "search radius in meters")
	freshness := flag.Duration("freshness", 0, "reject cached data older than this (0 = any age within TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting advisor",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, time.Second, zapLog, "Redis initialization")
	if err != nil {
		// The cache store degrades to direct fetches when redis is down, so
		// a missing cache is a warning rather than a startup failure.
		zapLog.Warn("redis unavailable, running without cache backend", zap.Error(err))
		rdb, _ = database.NewRedis(cfg.Database.Redis)
	}
	defer rdb.Close()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 5, time.Second, zapLog, "PostgreSQL initialization")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	// --- Metrics and pprof listener ---
	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("metrics listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	engine := buildEngine(cfg, rdb, pg, log)

	if *location == "" || *category == "" {
		flag.Usage()
		os.Exit(2)
	}

	start := time.Now()
	rep, err := engine.Analyze(ctx, models.Query{
		Location:     *location,
		Category:     *category,
		RadiusMeters: *radius,
		Freshness:    *freshness,
	})
	if err != nil {
		obs.RecordDuration(ctx, time.Since(start), "error")
		zapLog.Fatal("analysis failed", zap.Error(err))
	}
	obs.RecordDuration(ctx, time.Since(start), "success")
	obs.RecordAnalysis(ctx, rep.Confidence)

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		zapLog.Fatal("report encoding failed", zap.Error(err))
	}
	fmt.Println(string(out))
}

func buildEngine(cfg *config.Config, rdb *database.RedisClient, pg *database.PostgresClient, log logger.Logger) *orchestrator.Engine {
	registry := provider.NewRegistry(cfg.Categories)
	limiter := ratelimit.New(cfg.RateLimits, log)

	registry.Register(places.NewAdapter(&places.Config{
		BaseURL:      cfg.Providers.Places.BaseURL,
		APIKey:       cfg.Providers.Places.APIKey,
		Timeout:      config.GetDuration(cfg.Providers.Places.TimeoutMs),
		MaxResults:   cfg.Providers.Places.MaxResults,
		AmenityTypes: cfg.Providers.Places.AmenityTypes,
	}, limiter, log))

	registry.Register(websearch.NewAdapter(&websearch.Config{
		BaseURL:      cfg.Providers.WebSearch.BaseURL,
		APIKey:       cfg.Providers.WebSearch.APIKey,
		EngineID:     cfg.Providers.WebSearch.EngineID,
		Timeout:      config.GetDuration(cfg.Providers.WebSearch.TimeoutMs),
		MaxResults:   cfg.Providers.WebSearch.MaxResults,
		MinRelevance: cfg.Providers.WebSearch.MinRelevance,
	}, log))

	registry.Register(ai.NewAdapter(&ai.Config{
		BaseURL:     cfg.Providers.AI.BaseURL,
		APIKey:      cfg.Providers.AI.APIKey,
		Model:       cfg.Providers.AI.Model,
		Timeout:     config.GetDuration(cfg.Providers.AI.TimeoutMs),
		MaxTokens:   cfg.Providers.AI.MaxTokens,
		Temperature: 0.3,
	}, log))

	registry.Register(property.NewAdapter(&property.Config{
		Table:   cfg.Providers.Property.Table,
		Timeout: config.GetDuration(cfg.Providers.Property.TimeoutMs),
	}, pg.GetDB(), log))

	return orchestrator.NewEngine(
		normalize.New(geocode.NewNominatim(cfg.Geocoder, log), log),
		registry,
		cachestore.New(rdb.GetClient(), log),
		limiter,
		evidence.NewProcessor(cfg.Dedup, log),
		report.NewAssembler(log),
		cfg.Cache,
		config.GetDuration(cfg.App.DeadlineMs),
		log,
	)
}
