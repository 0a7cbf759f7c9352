package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/swannekim/FURIOUS/internal/api"
	"github.com/swannekim/FURIOUS/internal/cache"
	"github.com/swannekim/FURIOUS/internal/domain"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/observability"
	"github.com/swannekim/FURIOUS/internal/region"
	"github.com/swannekim/FURIOUS/internal/risk"
	"github.com/swannekim/FURIOUS/internal/track"
)

func main() {
	// A missing .env is normal outside development.
	envErr := godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("FURIOUS_LOG_LEVEL")),
	}))
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		logger.Error("invalid tracing configuration", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	trackCfg, err := loadTrackConfig(logger)
	if err != nil {
		logger.Error("invalid track configuration", "error", err)
		os.Exit(1)
	}
	repo := track.NewFileRepository(trackCfg.DataDir, trackCfg.Fleets, logger)
	if err := repo.Check(); err != nil {
		logger.Warn("track data directory not readable, starting anyway", "dir", trackCfg.DataDir, "error", err)
	}

	// Warm every fleet so the first request does not pay for parsing.
	for _, name := range repo.Fleets() {
		if _, err := repo.Snapshot(ctx, name); err != nil {
			logger.Warn("failed to load track dataset", "fleet", name, "error", err)
		}
	}

	regionCfg := loadRegionConfig(logger)
	metrics.SetRegionWorkers(regionCfg.Workers)
	regions := region.NewBuilder(repo, regionCfg, logger)
	assessor := risk.NewAssessor(repo, regions, logger)

	results := cache.NewResultCache(loadCacheConfig(logger), logger)

	srv, err := api.NewServer(loadServerConfig(logger), repo, assessor, results, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Background goroutine to update dataset age gauges.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for fleet, age := range repo.AgeSeconds() {
					metrics.SetDatasetAge(fleet, age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", srv.HTTPServer().Addr, "fleets", repo.Fleets())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type trackConfig struct {
	DataDir string
	Fleets  track.FleetConfig
}

func loadTrackConfig(logger *slog.Logger) (trackConfig, error) {
	cfg := trackConfig{
		DataDir: "./testdata",
		Fleets:  track.DefaultFleets(),
	}

	if v := os.Getenv("FURIOUS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("FURIOUS_FLEETS_FILE"); v != "" {
		fleets, err := track.LoadFleets(v)
		if err != nil {
			return cfg, err
		}
		cfg.Fleets = fleets
	}

	logger.Info("track config",
		"data_dir", cfg.DataDir,
		"fleets", cfg.Fleets.Names(),
	)

	return cfg, nil
}

func loadRegionConfig(logger *slog.Logger) region.Config {
	cfg := region.Config{
		Workers: runtime.NumCPU(),
		Model:   domain.NewModel(),
	}

	if v := os.Getenv("FURIOUS_REGION_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FURIOUS_REGION_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("FURIOUS_MIN_SPEED_KNOTS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid FURIOUS_MIN_SPEED_KNOTS value, using default", "value", v, "default", domain.DefaultMinSpeedKnots)
		} else {
			cfg.Model.MinSpeedKnots = f
		}
	}

	logger.Info("region config",
		"workers", cfg.Workers,
		"min_speed_knots", cfg.Model.MinSpeedKnots,
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		Size: 256,
		TTL:  600 * time.Second,
	}

	if v := os.Getenv("FURIOUS_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid FURIOUS_CACHE_SIZE value, using default", "value", v, "default", 256)
		} else {
			cfg.Size = n
		}
	}

	if v := os.Getenv("FURIOUS_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FURIOUS_CACHE_TTL value, using default", "value", v, "default", 600)
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func loadServerConfig(logger *slog.Logger) api.Config {
	cfg := api.Config{
		Addr:               ":8080",
		MaxConcurrentPerIP: 4,
		MaxConcurrent:      64,
	}

	if v := os.Getenv("FURIOUS_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("FURIOUS_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid FURIOUS_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	if v := os.Getenv("FURIOUS_MAX_CONCURRENT_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid FURIOUS_MAX_CONCURRENT_PER_IP value, using default", "value", v, "default", 4)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("FURIOUS_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid FURIOUS_MAX_CONCURRENT value, using default", "value", v, "default", 64)
		} else {
			cfg.MaxConcurrent = n
		}
	}

	logger.Info("server config",
		"addr", cfg.Addr,
		"trust_proxy", cfg.TrustProxy,
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
	)

	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.DefaultTracingConfig()

	if v := os.Getenv("FURIOUS_TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid FURIOUS_TRACING_ENABLED value, defaulting to false", "value", v)
		} else {
			cfg.Enabled = b
		}
	}

	if v := os.Getenv("FURIOUS_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}

	if v := os.Getenv("FURIOUS_TRACING_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}

	if v := os.Getenv("FURIOUS_TRACING_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			logger.Warn("invalid FURIOUS_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", 1.0)
		} else {
			cfg.SampleRatio = f
		}
	}

	return cfg
}
