package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/kafka-go"

	"SignalDesk/internal/domain/repository"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/internal/handler/api"
	mid "SignalDesk/internal/middleware"
	internalrepo "SignalDesk/internal/repository"
	"SignalDesk/internal/service/cache"
	"SignalDesk/internal/service/finnhub"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/services/sentiment"
	"SignalDesk/internal/services/strategy"
	"SignalDesk/internal/services/timing"
	"SignalDesk/internal/usecase"
	pkgcache "SignalDesk/pkg/cache"
	pkgch "SignalDesk/pkg/clickhouse"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	xmiddleware "SignalDesk/pkg/http/middleware"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"
	"SignalDesk/pkg/queue"
	"SignalDesk/pkg/server"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideClock() timing.Clock {
	return timing.SystemClock{}
}

// ProvideClickHouseClient connects to ClickHouse when it backs candles or stores ticks.
// Returns nil when ClickHouse is not used.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled && cfg.MarketData.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithCompression(cfg.ClickHouse.Compression),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithPingTimeout(cfg.ClickHouse.PingTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("clickhouse.connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database))
	return client, nil
}

// ProvideRedisCache connects the shared cache level. An unreachable Redis is logged and
// the service runs with the in-process cache only.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) *pkgcache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		l.Warn("redis.unavailable", applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
		return nil
	}
	return rc
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideMemoryCandleStore(cfg *config.Config) *internalrepo.MemoryCandleStore {
	return internalrepo.NewMemoryCandleStore(cfg.MarketData.MaxCandles)
}

// ProvideFeatureStore selects where the analysis engine reads candles from.
func ProvideFeatureStore(cfg *config.Config, mem *internalrepo.MemoryCandleStore, ch *pkgch.Client, l *applogger.Logger) repository.FeatureStore {
	if cfg.MarketData.Backend == "clickhouse" && ch != nil {
		store := internalrepo.NewCHFeatureStore(ch, "")
		store.SetLogger(l)
		return store
	}
	return mem
}

// ProvideTickIngestor returns the in-memory candle builder. With the ClickHouse backend the
// materialized view builds candles, so there is nothing to ingest into.
func ProvideTickIngestor(cfg *config.Config, mem *internalrepo.MemoryCandleStore) repository.TickIngestor {
	if cfg.MarketData.Backend == "clickhouse" {
		return nil
	}
	return mem
}

// ProvideTickStorage creates ClickHouse tick storage and makes sure the schema exists.
func ProvideTickStorage(cfg *config.Config, ch *pkgch.Client) (repository.TickStorage, error) {
	if ch == nil || (cfg.MarketData.Backend != "clickhouse" && !cfg.ClickHouse.StoreTicks) {
		return nil, nil
	}
	store := internalrepo.NewClickHouseTickStorage(ch, cfg.MarketData.Source, cfg.ClickHouse.TTLDays)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideTickPublisher republishes ticks from the websocket stream to the ticks topic.
func ProvideTickPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.TickPublisher {
	if producer == nil || cfg.MarketData.Source != "finnhub" || cfg.Kafka.TicksTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.TicksTopic)
}

func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SignalPublisher {
	if producer == nil || cfg.Kafka.SignalsTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

func ProvideSentimentProvider(cfg *config.Config) domsvc.SentimentProvider {
	if !cfg.Sentiment.Enabled {
		return nil
	}
	return sentiment.NewHTTPProvider(cfg)
}

// ProvideResultCache builds the two-level result cache.
func ProvideResultCache(clock timing.Clock, rc *pkgcache.RedisCache, l *applogger.Logger) *cache.ResultCache {
	opts := []cache.Option{cache.WithLogger(l)}
	if rc != nil {
		opts = append(opts, cache.WithRemote(rc))
	}
	return cache.NewResultCache(clock, opts...)
}

func ProvideSignalAnalyzer(cfg *config.Config, store repository.FeatureStore, clock timing.Clock) *usecase.SignalAnalyzer {
	return usecase.NewSignalAnalyzer(store, strategy.NewSelector(), clock, cfg.Engine.Lookback)
}

// ProvideConfluenceAggregator parses the configured timeframe set.
func ProvideConfluenceAggregator(cfg *config.Config, engine *usecase.SignalAnalyzer, l *applogger.Logger) (*usecase.ConfluenceAggregator, error) {
	tfs := make([]repository.Timeframe, 0, len(cfg.Engine.Timeframes))
	for _, s := range cfg.Engine.Timeframes {
		tf, ok := repository.ParseInterval(s)
		if !ok {
			return nil, fmt.Errorf("engine.timeframes: unsupported %q", s)
		}
		tfs = append(tfs, tf)
	}
	return usecase.NewConfluenceAggregator(engine, tfs, l), nil
}

func ProvideAnalyzer(
	cfg *config.Config,
	engine *usecase.SignalAnalyzer,
	conf *usecase.ConfluenceAggregator,
	rc *cache.ResultCache,
	sp domsvc.SentimentProvider,
	pub repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Analyzer {
	opts := []usecase.AnalyzerOption{
		usecase.WithMetrics(m),
		usecase.WithAnalyzerLogger(l),
		usecase.WithTTLs(cache.TTLs{
			Market:     cfg.Engine.CacheTTL.Market,
			Confluence: cfg.Engine.CacheTTL.Confluence,
			Sentiment:  cfg.Engine.CacheTTL.Sentiment,
			Strategies: cfg.Engine.CacheTTL.Strategies,
		}),
	}
	if sp != nil {
		opts = append(opts, usecase.WithSentimentProvider(sp))
	}
	if pub != nil {
		opts = append(opts, usecase.WithSignalPublisher(pub))
	}
	return usecase.NewAnalyzer(engine, conf, rc, opts...)
}

func ProvideCandlesUseCase(store repository.FeatureStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideTickProcessor picks where live ticks go after the candle store: ClickHouse when it
// stores ticks, otherwise the ticks topic when a producer exists.
func ProvideTickProcessor(
	ingestor repository.TickIngestor,
	pub repository.TickPublisher,
	store repository.TickStorage,
	m repository.Metrics,
) *usecase.TickProcessor {
	backend := usecase.BackendNone
	switch {
	case store != nil:
		backend = usecase.BackendClickHouse
	case pub != nil:
		backend = usecase.BackendKafka
	}
	return usecase.NewTickProcessor(ingestor, pub, store, m, backend)
}

// ProvideTickCollector creates the Finnhub collector, or nil for other sources.
func ProvideTickCollector(
	cfg *config.Config,
	processor *usecase.TickProcessor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TickCollector {
	if cfg.MarketData.Source != "finnhub" {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		l,
	)
	pipe := mid.NewTickPipeline(processor, m,
		mid.WithMinInterval(cfg.Finnhub.Throttle),
		mid.WithBufferSize(cfg.Finnhub.BufferSize),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe, l)
}

// ProvideKafkaConsumer creates the ticks consumer when ticks arrive over Kafka.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.MarketData.Source != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("kafka_consume")
			l.Warn("kafka.handle_failed",
				applogger.String("topic", topic),
				applogger.String("key", pkgkafka.KeyOf(km)),
				applogger.Error(err))
		},
	})
	return consumer, nil
}

// ProvideKafkaTicksHandler handles the ticks topic; nil unless ticks arrive over Kafka.
func ProvideKafkaTicksHandler(
	cfg *config.Config,
	ingestor repository.TickIngestor,
	store repository.TickStorage,
	m repository.Metrics,
) *usecase.KafkaTicksHandler {
	if cfg.MarketData.Source != "kafka" {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, ingestor, store, m)
}

// ProvideQueue returns the job queue behind the watchlist: Redis lists when Redis is
// available, otherwise in-process channels. Nil when the scheduler does not queue.
func ProvideQueue(cfg *config.Config, rc *pkgcache.RedisCache, l *applogger.Logger) queue.Runner {
	if !cfg.Scheduler.Enabled || !cfg.Scheduler.UseQueue {
		return nil
	}
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		QueueSize:  4 * len(cfg.Scheduler.Watchlist),
		RetryLimit: 2,
		RetryDelay: cfg.Scheduler.Every / 4,
	}
	if rc != nil {
		var opts []queue.RedisQueueOption
		if cfg.Redis.Prefix != "" {
			opts = append(opts, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
		}
		return queue.NewRedisQueue(l, qcfg, rc.Client(), opts...)
	}
	return queue.NewMemoryQueue(l, qcfg)
}

// ProvideWatchlistScheduler creates the periodic re-analysis job, or nil when disabled.
func ProvideWatchlistScheduler(cfg *config.Config, an *usecase.Analyzer, q queue.Runner, l *applogger.Logger) (*usecase.WatchlistScheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	items, err := usecase.ParseWatchlist(cfg.Scheduler.Watchlist)
	if err != nil {
		return nil, fmt.Errorf("scheduler.watchlist: %w", err)
	}
	var d usecase.Dispatcher = usecase.NewDirectDispatcher(an)
	if q != nil {
		q.RegisterJob(usecase.NewAnalyzeJob(an, l))
		d = usecase.NewQueueDispatcher(q)
	}
	return usecase.NewWatchlistScheduler(items, cfg.Scheduler.Every, cfg.Scheduler.Workers, d, l), nil
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideHealthChecks lists the dependencies /healthz reports on.
func ProvideHealthChecks(ch *pkgch.Client, rc *pkgcache.RedisCache, collector *usecase.TickCollector) []api.HealthCheck {
	var checks []api.HealthCheck
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	if rc != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}})
	}
	if collector != nil {
		checks = append(checks, api.HealthCheck{Name: "finnhub", Check: func(context.Context) error {
			if !collector.IsConnected() {
				return errors.New("stream disconnected")
			}
			return nil
		}})
	}
	return checks
}

// ProvideHTTPServer builds the Echo server with the signals API and per-client rate limiting.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	an *usecase.Analyzer,
	candles *usecase.CandlesUseCase,
	limiter *ratelimit.Limiter,
	checks []api.HealthCheck,
) *xhttp.Server {
	handler := api.NewSignalsEchoHandler(l, an, candles, checks...)

	var mws []echo.MiddlewareFunc
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		burst := float64(max(rl.Burst, 1))
		mws = append(mws, xmiddleware.RateLimit(func(key string) bool {
			return limiter.Allow(key, burst, rl.RPS)
		}, "/healthz", cfg.Metrics.Path))
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
		xhttp.WithMiddleware(mws...),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	collector *usecase.TickCollector,
	processor *usecase.TickProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	scheduler *usecase.WatchlistScheduler,
	q queue.Runner,
	limiter *ratelimit.Limiter,
	chClient *pkgch.Client,
	rc *pkgcache.RedisCache,
	producer *pkgkafka.Producer,
) *server.App {
	opts := []server.Option{
		server.WithTickProcessor(processor),
		server.WithLimiter(limiter),
	}
	if collector != nil {
		opts = append(opts, server.WithCollector(collector))
	}
	if consumer != nil && kh != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if scheduler != nil {
		opts = append(opts, server.WithScheduler(scheduler))
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	// Closed last, in this order.
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka_producer", producer))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	return server.New(cfg, l, httpServer, opts...)
}
