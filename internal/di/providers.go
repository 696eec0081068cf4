package di

import (
	"fmt"
	"net"
	"strconv"

	"StayCast/internal/domain/models"
	"StayCast/internal/domain/repository"
	"StayCast/internal/handler/api"
	internalrepo "StayCast/internal/repository"
	"StayCast/internal/services/forecasters"
	"StayCast/internal/usecase"
	"StayCast/pkg/cache"
	pkgch "StayCast/pkg/clickhouse"
	"StayCast/pkg/config"
	pkgkafka "StayCast/pkg/kafka"
	applogger "StayCast/pkg/logger"
	"StayCast/pkg/metrics"
	"StayCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
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
	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePanelSource creates the ClickHouse panel reader.
func ProvidePanelSource(chClient *pkgch.Client, l *applogger.Logger) repository.PanelSource {
	return internalrepo.NewCHPanelSource(chClient, l)
}

// ProvideResultSink creates the ClickHouse artifact writer.
func ProvideResultSink(chClient *pkgch.Client) repository.ResultSink {
	return internalrepo.NewCHResultStore(chClient)
}

// ProvidePublisher creates the Kafka publisher, or a no-op when Kafka is
// disabled.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.SelectionTopic, cfg.Kafka.ForecastTopic), nil
}

// ProvideCache creates the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Cache.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache addr %q: %w", cfg.Cache.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cache port %q: %w", portStr, err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Cache.Password),
		cache.WithRedisDB(cfg.Cache.DB),
		cache.WithRedisPrefix("staycast"),
	)
}

// ProvideMLBase creates the shared HTTP client for the external model
// service.
func ProvideMLBase(cfg *config.Config) *forecasters.ServiceBase {
	return forecasters.NewServiceBase(cfg)
}

// ProvideTargets converts configured targets into coordinator specs.
func ProvideTargets(cfg *config.Config) ([]usecase.TargetSpec, error) {
	out := make([]usecase.TargetSpec, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		spec := usecase.TargetSpec{
			Name:         t.Name,
			NonNegative:  t.IsNonNegative(),
			LogStabilize: t.LogStabilize,
		}
		for _, f := range t.Frequencies {
			freq, err := models.ParseFrequency(f)
			if err != nil {
				return nil, fmt.Errorf("target %s: %w", t.Name, err)
			}
			spec.Frequencies = append(spec.Frequencies, freq)
		}
		out = append(out, spec)
	}
	return out, nil
}

// ProvideCoordinator creates the run coordinator.
func ProvideCoordinator(
	cfg *config.Config,
	targets []usecase.TargetSpec,
	source repository.PanelSource,
	sink repository.ResultSink,
	pub repository.Publisher,
	cacheSvc cache.Service,
	rec repository.Metrics,
	mlBase *forecasters.ServiceBase,
	l *applogger.Logger,
) *usecase.Coordinator {
	horizons := make(map[models.Frequency]int, len(cfg.Backtest.Horizons))
	for f, h := range cfg.Backtest.Horizons {
		horizons[models.Frequency(f)] = h
	}
	ccfg := usecase.CoordinatorConfig{
		Workers: cfg.Backtest.Workers,
		Backtest: usecase.BacktestConfig{
			Windows:    cfg.Backtest.Windows,
			Step:       cfg.Backtest.Step,
			MinTrain:   cfg.Backtest.MinTrain,
			FitTimeout: cfg.Backtest.FitTimeout,
			FitRetries: cfg.Backtest.FitRetries,
		},
		Horizons:       horizons,
		AlphaGrid:      cfg.Backtest.AlphaGrid,
		HybridBaseline: cfg.Backtest.HybridBaseline,
		Epsilon:        cfg.Backtest.SelectionEpsilon,
		CacheTTL:       cfg.Cache.TTL,
	}
	return usecase.NewCoordinator(ccfg, targets, source, sink, pub, cacheSvc, rec, mlBase, l)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(l *applogger.Logger, coord *usecase.Coordinator, cacheSvc cache.Service, source repository.PanelSource) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, coord, cacheSvc, source)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	coord *usecase.Coordinator,
	handler *api.ForecastEchoHandler,
	chClient *pkgch.Client,
	sink repository.ResultSink,
	pub repository.Publisher,
) *server.App {
	return server.New(cfg, l, coord, handler, chClient, sink, pub)
}
