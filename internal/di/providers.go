package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"BarBridge/internal/archive"
	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/repository"
	"BarBridge/internal/engine"
	"BarBridge/internal/feed"
	"BarBridge/internal/publisher"
	"BarBridge/internal/responder"
	"BarBridge/internal/status"
	pkgch "BarBridge/pkg/clickhouse"
	"BarBridge/pkg/config"
	xhttp "BarBridge/pkg/http"
	pkgkafka "BarBridge/pkg/kafka"
	applogger "BarBridge/pkg/logger"
	"BarBridge/pkg/metrics"
	"BarBridge/pkg/server"
)

// ProvideBoard creates the status board wrapping the Prometheus recorder.
func ProvideBoard() *status.Board {
	return status.NewBoard(metrics.New())
}

// ProvideMetrics exposes the board as the domain Metrics port.
func ProvideMetrics(board *status.Board) repository.Metrics { return board }

// ProvideLogger creates the application logger with error aggregation routed
// to the status board.
func ProvideLogger(cfg *config.Config, board *status.Board) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          "errors",
		Publisher:      board,
	})
	return l, nil
}

// ProvideCache creates the bar cache.
func ProvideCache(cfg *config.Config) *barcache.Cache {
	return barcache.New(cfg.Cache.Capacity)
}

// ProvideClickHouseClient creates a ClickHouse client when the archive uses
// it, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Archive.Type != "clickhouse" {
		return nil, nil
	}
	ch := cfg.Archive.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(ch.AsyncInsert, false),
		pkgch.WithTimeouts(ch.DialTimeout, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, archive.Schema(ch.Database, ch.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideArchiveWriter creates the write-behind archive worker, nil when
// archiving is disabled.
func ProvideArchiveWriter(
	cfg *config.Config,
	chClient *pkgch.Client,
	m repository.Metrics,
	log *applogger.Logger,
) (*archive.Writer, error) {
	var store repository.BarArchive
	switch cfg.Archive.Type {
	case "none":
		return nil, nil
	case "clickhouse":
		table := cfg.Archive.ClickHouse.Database + "." + cfg.Archive.ClickHouse.Table
		store = archive.NewClickHouseStore(chClient.DB(), table)
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Archive.Redis.Addr,
			Password: cfg.Archive.Redis.Password,
			DB:       cfg.Archive.Redis.DB,
		})
		store = archive.NewRedisStore(rc, cfg.Archive.Redis.KeyPrefix, cfg.Archive.Redis.MaxBars)
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Archive.Type)
	}
	return archive.NewWriter(store, m, log,
		archive.WithWriterBuffer(cfg.Archive.BufferSize),
		archive.WithStoreTimeout(cfg.Archive.Timeout),
	), nil
}

// ProvideKafkaProducer creates a Kafka producer shared by the publisher and
// the responder reply path, nil when neither needs one.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Publisher.Type != "kafka" && !cfg.Responder.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Publisher.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Publisher.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Publisher.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Publisher.Kafka.WriteTimeout, 0),
		pkgkafka.WithMaxAttempts(cfg.Publisher.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSinkFactory builds fresh push endpoints for each adapter session.
func ProvideSinkFactory(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	log *applogger.Logger,
) engine.SinkFactory {
	return func() (repository.BarSink, error) {
		var backend publisher.Backend
		switch cfg.Publisher.Type {
		case "websocket":
			backend = publisher.NewWSBackend(cfg.Publisher.WebSocket.URL, cfg.Publisher.WebSocket.WriteTimeout)
		case "kafka":
			backend = publisher.NewKafkaBackend(producer, cfg.Publisher.Kafka.Topic)
		default:
			return nil, fmt.Errorf("unknown publisher type %q", cfg.Publisher.Type)
		}
		return publisher.New(backend, m, log, publisher.WithBufferSize(cfg.Publisher.BufferSize)), nil
	}
}

// ProvideResponderFactory builds fresh pull endpoints around each session's
// symbol and timeframe snapshot.
func ProvideResponderFactory(
	cfg *config.Config,
	cache *barcache.Cache,
	board *status.Board,
	m repository.Metrics,
	producer *pkgkafka.Producer,
	log *applogger.Logger,
) engine.ResponderFactory {
	return func(snap responder.Snapshot) (*responder.Responder, error) {
		core := responder.NewCore(snap, cache, m)
		transports := []repository.QueryServer{
			responder.NewHTTPTransport(core, board, log,
				xhttp.WithPort(cfg.Server.Port),
				xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			),
		}
		if cfg.Responder.Kafka.Enabled {
			consumer, err := pkgkafka.NewConsumer(
				pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
				pkgkafka.WithConsumerGroupID(cfg.Responder.Kafka.GroupID),
				pkgkafka.WithConsumerWorkers(cfg.Responder.Kafka.Workers),
			)
			if err != nil {
				return nil, fmt.Errorf("responder consumer: %w", err)
			}
			transports = append(transports, responder.NewKafkaTransport(
				core, consumer, producer,
				cfg.Responder.Kafka.RequestTopic, cfg.Responder.Kafka.ReplyTopic,
				log,
			))
		}
		return responder.New(core, transports...), nil
	}
}

// ProvideAggregator creates the built-in trade-to-bar host feed.
func ProvideAggregator(cfg *config.Config) (*feed.Aggregator, error) {
	return feed.NewAggregator(cfg.Feed.Symbol, cfg.Feed.Timeframe)
}

// ProvideStream creates the market data WebSocket stream.
func ProvideStream(cfg *config.Config, log *applogger.Logger) *feed.Stream {
	return feed.NewStream(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbol,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		log,
	)
}

// ProvideEngine creates the lifecycle controller.
func ProvideEngine(
	cfg *config.Config,
	agg *feed.Aggregator,
	cache *barcache.Cache,
	sinkFactory engine.SinkFactory,
	responderFactory engine.ResponderFactory,
	m repository.Metrics,
	log *applogger.Logger,
	archiver *archive.Writer,
) *engine.Engine {
	opts := []engine.Option{engine.WithHealthInterval(cfg.Engine.HealthInterval)}
	if archiver != nil {
		opts = append(opts, engine.WithArchiver(archiver))
	}
	return engine.New(agg, cache, sinkFactory, responderFactory, m, log, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	stream *feed.Stream,
	agg *feed.Aggregator,
	eng *engine.Engine,
	archiver *archive.Writer,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, log, stream, agg, eng, archiver, chClient, producer)
}
