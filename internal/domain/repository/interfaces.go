package repository

import (
	"context"
	"time"

	"BarBridge/internal/domain/models"
)

// HostInfo is what a host must expose before the adapter can initialize.
type HostInfo struct {
	Symbol    string
	Timeframe string // host-native form, converted once via ParseTimeframe
}

// CandleFeed is the narrow host collaborator interface. Its methods are only
// safe to call from the delivery context; background loops must never hold a
// reference to it and work off copies taken at initialization instead.
type CandleFeed interface {
	// Ready reports host readiness: symbol and timeframe known and at least
	// one bar produced.
	Ready() (HostInfo, bool)
	// Candle returns the bar at the given feed index.
	Candle(index int) (models.CachedBar, error)
}

// BarSink is the push path for newly completed live bars.
type BarSink interface {
	Start(ctx context.Context) error
	Stop()
	// Enqueue hands a record to the background sender without ever blocking;
	// records are dropped when the send path is saturated or down.
	Enqueue(rec models.BarRecord)
	IsConnected() bool
}

// QueryServer is one transport of the pull path.
type QueryServer interface {
	Start(ctx context.Context) error
	Stop()
	IsConnected() bool
}

// BarArchive is an optional durable mirror of completed bars. It never sits
// on the delivery path; writes go through a background worker.
type BarArchive interface {
	Store(ctx context.Context, symbol string, bar models.CachedBar) error
	Close() error
}

// Metrics is the instrumentation port shared by all components.
type Metrics interface {
	RecordBarPushed(symbol string)
	RecordBarsQueried(symbol string, n int)
	RecordSendFailure()
	RecordReceiveFailure()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetConnected(up bool)
}

// Clock abstracts wall time so the lifecycle health check is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
