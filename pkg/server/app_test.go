package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/repository"
	"BarBridge/internal/engine"
	"BarBridge/internal/feed"
	"BarBridge/internal/responder"
	"BarBridge/pkg/config"
	pkgkafka "BarBridge/pkg/kafka"
	applogger "BarBridge/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordBarPushed(string)        {}
func (nopMetrics) RecordBarsQueried(string, int) {}
func (nopMetrics) RecordSendFailure()            {}
func (nopMetrics) RecordReceiveFailure()         {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) SetConnected(bool)             {}

func TestShutdownClosesKafkaProducer(t *testing.T) {
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	agg, err := feed.NewAggregator("BINANCE:BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	eng := engine.New(agg, barcache.New(barcache.MinCapacity),
		func() (repository.BarSink, error) { return nil, fmt.Errorf("unused") },
		func(responder.Snapshot) (*responder.Responder, error) { return nil, fmt.Errorf("unused") },
		nopMetrics{}, l)

	producer, err := pkgkafka.NewProducer(pkgkafka.WithBrokers([]string{"127.0.0.1:1"}))
	if err != nil {
		t.Fatalf("producer: %v", err)
	}

	stream := feed.NewStream("", "ws://unused", "BINANCE:BTCUSDT", time.Second, time.Second, l)
	app := New(&config.Config{}, l, stream, agg, eng, nil, nil, producer)

	if err := app.shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := producer.Publish(ctx, "bars", nil, "payload"); err == nil {
		t.Fatalf("publish succeeded on a producer that shutdown should have closed")
	}
}
