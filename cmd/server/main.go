package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/export"
	"github.com/pricelens/backend/internal/infrastructure/pricefeed"
	"github.com/pricelens/backend/internal/infrastructure/store"
	"github.com/pricelens/backend/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// run wires the server and blocks until shutdown. Every deferred close runs
// before it returns, including on startup errors.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	configureLogging(cfg.Log)

	log.WithFields(log.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache":       cfg.Cache.Type,
		"store":       cfg.Store.Type,
		"source":      cfg.Refresh.Source,
		"tier":        cfg.Subscription.Tier,
	}).Info("Starting PriceLens Backend v1.0.0")

	ctx := context.Background()
	exporter := export.NewJSONExporter(false)

	cacheRepo, closeCache, err := newCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer closeCache()

	snapshotRepo, closeStore, err := newStore(cfg.Store, exporter)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	defer closeStore()

	limits, err := domain.LimitsFor(domain.Tier(cfg.Subscription.Tier))
	if err != nil {
		return fmt.Errorf("failed to resolve subscription tier: %w", err)
	}

	// The simulated source reads prices from the service it feeds
	var service *usecase.DashboardService
	current := func() *domain.Snapshot { return service.Current() }

	source, refreshFeature, closeSource := newSource(cfg, current)
	defer closeSource()

	serviceConfig := usecase.DashboardServiceConfig{
		Limits:         limits,
		CacheTTL:       cfg.Cache.TTL,
		RefreshTimeout: cfg.Refresh.Timeout,
		RefreshFeature: refreshFeature,
	}
	if cfg.Store.Seed {
		serviceConfig.Seed = usecase.SampleSnapshot(time.Now())
	}

	service, err = usecase.NewDashboardService(ctx, snapshotRepo, cacheRepo, source, exporter, serviceConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize dashboard service: %w", err)
	}
	defer service.Close()

	handler := httpDelivery.NewHandler(service)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	return serve(ctx, srv, quit, cfg.Server.ShutdownTimeout)
}

// serve runs srv until a signal arrives on quit or the listener fails, then
// shuts it down within timeout
func serve(ctx context.Context, srv *http.Server, quit <-chan os.Signal, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func configureLogging(cfg config.LogConfig) {
	log.SetOutput(os.Stdout)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warnf("Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func newCache(cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	if cfg.Type == "redis" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using Redis comparison cache")
		return cache.NewRedisCache(client, ""), func() { client.Close() }, nil
	}

	memoryCache := cache.NewMemoryCache(time.Minute)
	log.WithField("ttl", cfg.TTL).Info("Using in-memory comparison cache")
	return memoryCache, memoryCache.Close, nil
}

func newStore(cfg config.StoreConfig, codec domain.Exporter) (domain.SnapshotRepository, func(), error) {
	if cfg.Type == "redis" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("key", cfg.Key).Info("Using Redis snapshot store")
		return store.NewRedisStore(client, cfg.Key, codec), func() { client.Close() }, nil
	}

	log.Info("Using in-memory snapshot store")
	return store.NewMemoryStore(), func() {}, nil
}

// newSource picks the observation source and the tier feature needed to
// trigger it
func newSource(cfg *config.Config, current func() *domain.Snapshot) (domain.ObservationSource, domain.Feature, func()) {
	if cfg.Refresh.Source == "http" {
		client := pricefeed.NewClient(priceFeedConfig(cfg.PriceFeed))
		log.WithField("workers", cfg.PriceFeed.Workers).Info("Using HTTP price feed")
		return client, domain.FeatureAutoRefresh, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close price feed client")
			}
		}
	}

	log.WithFields(log.Fields{
		"magnitude": cfg.Refresh.Magnitude,
		"floor":     cfg.Refresh.FloorPrice,
		"delay":     cfg.Refresh.Delay,
	}).Info("Using simulated price source")
	simulated := usecase.NewSimulatedSource(usecase.SimulatedSourceConfig{
		Magnitude:  cfg.Refresh.Magnitude,
		FloorPrice: cfg.Refresh.FloorPrice,
		Delay:      cfg.Refresh.Delay,
	}, current)
	return simulated, domain.FeaturePriceTracking, func() {}
}

func priceFeedConfig(cfg config.PriceFeedConfig) pricefeed.Config {
	return pricefeed.Config{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
		RetryWait:         cfg.RetryWait,
		PriceSelector:     cfg.PriceSelector,
		SearchPath:        cfg.SearchPath,
		Workers:           cfg.Workers,
	}
}
