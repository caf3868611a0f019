package di

import (
	"context"
	"fmt"
	"time"

	"CandleVault/internal/domain/repository"
	"CandleVault/internal/handler/api"
	internalrepo "CandleVault/internal/repository"
	"CandleVault/internal/service/loader"
	"CandleVault/internal/usecase"
	"CandleVault/pkg/cache"
	pkgch "CandleVault/pkg/clickhouse"
	"CandleVault/pkg/config"
	pkgkafka "CandleVault/pkg/kafka"
	"CandleVault/pkg/keylock"
	applogger "CandleVault/pkg/logger"
	"CandleVault/pkg/metrics"
	"CandleVault/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ticker String,
			timeframe String,
			exchange String,
			ts DateTime64(3),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64
		) ENGINE=ReplacingMergeTree ORDER BY (ticker, timeframe, exchange, ts)`, db, cfg.ClickHouse.Table),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideCandleStore creates the ClickHouse-backed candle store.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config) repository.CandleStore {
	return internalrepo.NewClickHouseCandleStore(chClient.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideBackfillEvents creates the Kafka event sink, or nil when kafka is disabled.
func ProvideBackfillEvents(producer *pkgkafka.Producer, cfg *config.Config) usecase.BackfillEventSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaBackfillPublisher(producer, cfg.Kafka.Topic)
}

// ProvideResponseCache creates the Redis response cache, or nil when redis is disabled.
func ProvideResponseCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "candlevault"
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideLoaderClient creates the loader service client.
func ProvideLoaderClient(cfg *config.Config) *loader.Client {
	return loader.New(cfg.Loader.BaseURL,
		loader.WithTimeout(cfg.Loader.Timeout),
		loader.WithRateLimit(cfg.Loader.RateBurst, cfg.Loader.RateRefillPerSec),
	)
}

// ProvideCandleLoader exposes the loader client as a CandleLoader.
func ProvideCandleLoader(client *loader.Client) repository.CandleLoader {
	return client
}

// ProvideTickerSource exposes the loader client as a TickerSource.
func ProvideTickerSource(client *loader.Client) repository.TickerSource {
	return client
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKeyLocks creates the per-instrument lock registry.
func ProvideKeyLocks(cfg *config.Config) *keylock.Registry {
	return keylock.New(cfg.Candles.LockShards)
}

// ProvideCacheReader creates the cache read path.
func ProvideCacheReader(store repository.CandleStore, logger *applogger.Logger) *usecase.CacheReader {
	return usecase.NewCacheReader(store, logger)
}

// ProvideBackfillCoordinator creates the per-instrument resolution use case.
func ProvideBackfillCoordinator(
	reader *usecase.CacheReader,
	candleLoader repository.CandleLoader,
	locks *keylock.Registry,
	events usecase.BackfillEventSink,
	logger *applogger.Logger,
	m repository.Metrics,
) *usecase.BackfillCoordinator {
	return usecase.NewBackfillCoordinator(reader, candleLoader, locks, events, logger, m)
}

// ProvideOrchestrator creates the batch resolution use case.
func ProvideOrchestrator(
	coordinator *usecase.BackfillCoordinator,
	logger *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.MultiInstrumentOrchestrator {
	return usecase.NewMultiInstrumentOrchestrator(coordinator, logger, m,
		usecase.WithMaxWorkers(cfg.Candles.MaxWorkers),
		usecase.WithBatchTimeout(cfg.Candles.BatchTimeout),
	)
}

// ProvideReconciler creates the cross-instrument reconciliation use case.
func ProvideReconciler(logger *applogger.Logger, m repository.Metrics) *usecase.CrossInstrumentReconciler {
	return usecase.NewCrossInstrumentReconciler(logger, m)
}

// ProvideCandlesHandler creates the validated-candles HTTP handler.
func ProvideCandlesHandler(
	logger *applogger.Logger,
	orch *usecase.MultiInstrumentOrchestrator,
	recon *usecase.CrossInstrumentReconciler,
	tickers repository.TickerSource,
	respCache cache.Service,
	cfg *config.Config,
) *api.CandlesHandler {
	return api.NewCandlesHandler(logger, orch, recon, tickers, respCache,
		cfg.Candles.BenchmarkTicker, cfg.Candles.CacheTTL)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.CandlesHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	respCache cache.Service,
) *server.App {
	return server.New(cfg, logger, handler, chClient, producer, respCache)
}
