package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"BarBridge/internal/archive"
	"BarBridge/internal/engine"
	"BarBridge/internal/feed"
	pkgch "BarBridge/pkg/clickhouse"
	"BarBridge/pkg/config"
	pkgkafka "BarBridge/pkg/kafka"
	applogger "BarBridge/pkg/logger"
)

// App encapsulates the entire application lifecycle: the market stream, the
// trade aggregator that drives the adapter engine, and the optional archive
// writer.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	stream     *feed.Stream
	aggregator *feed.Aggregator
	engine     *engine.Engine
	archiver   *archive.Writer
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
}

// New creates a new App with all dependencies. archiver, chClient and
// producer are nil when their backends are disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	stream *feed.Stream,
	aggregator *feed.Aggregator,
	eng *engine.Engine,
	archiver *archive.Writer,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		stream:     stream,
		aggregator: aggregator,
		engine:     eng,
		archiver:   archiver,
		chClient:   chClient,
		producer:   producer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.archiver != nil {
		a.archiver.Start()
	}

	if err := a.stream.Connect(ctx); err != nil {
		return err
	}
	if err := a.stream.Subscribe(ctx); err != nil {
		_ = a.stream.Close()
		return err
	}

	go a.consume(ctx)
	a.log.Info("market stream consuming",
		applogger.String("symbol", a.cfg.Feed.Symbol),
		applogger.String("timeframe", a.cfg.Feed.Timeframe))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// consume is the delivery context: one goroutine reads the stream and feeds
// every trade through the aggregator into the engine. Stream failures trigger
// reconnects; the engine's health check handles anything downstream.
func (a *App) consume(ctx context.Context) {
	for {
		trades, errs := a.stream.Read(ctx)
		for trade := range trades {
			a.aggregator.Apply(trade, a.engine)
		}
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				a.log.Warn("stream read failed", applogger.Error(err))
			}
		}
		for {
			if err := a.stream.Reconnect(ctx); err == nil {
				break
			} else if ctx.Err() != nil {
				return
			} else {
				a.log.Warn("stream reconnect failed", applogger.Error(err))
			}
		}
		a.log.Info("market stream reconnected")
	}
}

// shutdown gracefully stops all services in dependency order: stream first so
// delivery stops, then the engine's endpoints, then the archive drain.
func (a *App) shutdown() error {
	if err := a.stream.Close(); err != nil {
		a.log.Warn("stream close error", applogger.Error(err))
	}

	a.engine.Close()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.archiver != nil {
		a.archiver.Stop()
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
