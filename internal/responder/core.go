package responder

import (
	"sync/atomic"

	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
)

// Snapshot carries the values the responder needs from the lifecycle
// controller, copied once at initialization. The responder runs on background
// contexts where the host feed must never be touched, so it only ever sees
// these copies.
type Snapshot struct {
	Symbol    string
	Timeframe repository.Timeframe
}

// Core answers range queries from the bar cache. It is transport-agnostic;
// the HTTP and Kafka transports both funnel into Answer.
type Core struct {
	snap    Snapshot
	cache   *barcache.Cache
	metrics repository.Metrics
	ready   atomic.Bool
}

// NewCore builds a ready core around an init-time snapshot.
func NewCore(snap Snapshot, cache *barcache.Cache, metrics repository.Metrics) *Core {
	c := &Core{snap: snap, cache: cache, metrics: metrics}
	c.ready.Store(true)
	return c
}

// SetReady flips the initialized flag. Teardown clears it before stopping
// the transports so an in-flight request answers "not initialized" instead
// of racing a half-dismantled adapter.
func (c *Core) SetReady(ready bool) { c.ready.Store(ready) }

// Answer validates the query and collects matching bars. Checks run in a
// fixed order so the first failing one deterministically names the rejection.
// A valid query over an empty range is not a rejection: zero bars, no debug.
func (c *Core) Answer(q models.RangeQuery) models.RangeResponse {
	resp := models.RangeResponse{
		RequestID: q.RequestID,
		Symbol:    c.snap.Symbol,
		Bars:      []models.BarRecord{},
	}

	if !c.ready.Load() {
		resp.Debug = models.DebugNotInitialized
		return resp
	}
	if q.Symbol != "" && q.Symbol != c.snap.Symbol {
		resp.Debug = models.DebugSymbolMismatch
		return resp
	}
	if q.HasTimeframe() && !c.snap.Timeframe.Matches(q.Resolution, q.Units) {
		resp.Debug = models.DebugTimeframeMismatch
		return resp
	}

	for _, bar := range c.cache.QueryRange(q.StartMs, q.EndMs) {
		resp.Bars = append(resp.Bars, bar.Record(c.snap.Symbol, c.snap.Timeframe.Resolution, c.snap.Timeframe.Units))
	}
	resp.Count = len(resp.Bars)
	c.metrics.RecordBarsQueried(c.snap.Symbol, resp.Count)
	return resp
}
