package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
	"BarBridge/internal/responder"
	applogger "BarBridge/pkg/logger"
)

type fakeFeed struct {
	mu    sync.Mutex
	ready bool
	info  repository.HostInfo
	bars  []models.CachedBar
}

func (f *fakeFeed) Ready() (repository.HostInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.ready
}

func (f *fakeFeed) Candle(index int) (models.CachedBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.bars) {
		return models.CachedBar{}, errors.New("index out of range")
	}
	return f.bars[index], nil
}

type fakeSink struct {
	mu        sync.Mutex
	started   bool
	stopped   bool
	connected bool
	enqueued  []models.BarRecord
}

func (s *fakeSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.connected = true
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.connected = false
}

func (s *fakeSink) Enqueue(rec models.BarRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, rec)
}

func (s *fakeSink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) records() []models.BarRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BarRecord, len(s.enqueued))
	copy(out, s.enqueued)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopMetrics struct{}

func (nopMetrics) RecordBarPushed(string)        {}
func (nopMetrics) RecordBarsQueried(string, int) {}
func (nopMetrics) RecordSendFailure()            {}
func (nopMetrics) RecordReceiveFailure()         {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) SetConnected(bool)             {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func bar(closeMs int64) models.CachedBar {
	close := time.UnixMilli(closeMs).UTC()
	return models.CachedBar{
		OpenTime:  close.Add(-100 * time.Millisecond),
		CloseTime: close,
		Open:      10, High: 11, Low: 9, Close: 10.5,
		Volume: 100,
	}
}

type harness struct {
	engine *Engine
	feed   *fakeFeed
	sink   *fakeSink
	cache  *barcache.Cache
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	feed := &fakeFeed{
		ready: true,
		info:  repository.HostInfo{Symbol: "BINANCE:BTCUSDT", Timeframe: "1m"},
	}
	sink := &fakeSink{}
	cache := barcache.New(barcache.DefaultCapacity)
	clock := &fakeClock{now: time.UnixMilli(0).UTC()}
	eng := New(
		feed,
		cache,
		func() (repository.BarSink, error) { return sink, nil },
		func(snap responder.Snapshot) (*responder.Responder, error) {
			core := responder.NewCore(snap, cache, nopMetrics{})
			return responder.New(core), nil
		},
		nopMetrics{},
		testLogger(t),
		WithClock(clock),
	)
	return &harness{engine: eng, feed: feed, sink: sink, cache: cache, clock: clock}
}

func TestStaysDownUntilHostReady(t *testing.T) {
	h := newHarness(t)
	h.feed.ready = false
	h.feed.bars = []models.CachedBar{bar(100)}

	h.engine.OnBarUpdate(1)
	if got := h.engine.State(); got != StateUninitialized {
		t.Fatalf("state = %v, want Uninitialized", got)
	}
	if h.cache.Len() != 0 {
		t.Fatalf("cached %d bars before readiness", h.cache.Len())
	}

	h.feed.mu.Lock()
	h.feed.ready = true
	h.feed.mu.Unlock()
	h.engine.OnBarUpdate(1)
	if got := h.engine.State(); got != StateReady {
		t.Fatalf("state = %v, want Ready", got)
	}
}

func TestReplayThenLiveScenario(t *testing.T) {
	h := newHarness(t)
	h.feed.bars = []models.CachedBar{bar(100), bar(200), bar(300), bar(400)}

	// replay: bars 0 and 1 complete before any tick arrives
	h.engine.OnBarUpdate(1)
	h.engine.OnBarUpdate(2)
	if got := len(h.sink.records()); got != 0 {
		t.Fatalf("pushed %d bars during replay, want 0", got)
	}

	// first live tick latches the boundary
	h.engine.OnTick(time.UnixMilli(150).UTC())

	h.engine.OnBarUpdate(3) // completes bar(300)
	h.engine.OnBarUpdate(4) // completes bar(400)
	recs := h.sink.records()
	if len(recs) != 2 {
		t.Fatalf("pushed %d bars after boundary, want 2", len(recs))
	}
	if recs[0].CloseTimeMs != 300 || recs[1].CloseTimeMs != 400 {
		t.Fatalf("pushed close times %d,%d, want 300,400", recs[0].CloseTimeMs, recs[1].CloseTimeMs)
	}

	// the cache serves replay and live bars alike
	got := h.cache.QueryRange(150, 400)
	if len(got) != 3 {
		t.Fatalf("QueryRange(150,400) = %d bars, want 3", len(got))
	}
}

func TestDuplicateIndexCompletesNothing(t *testing.T) {
	h := newHarness(t)
	h.feed.bars = []models.CachedBar{bar(100), bar(200)}

	h.engine.OnBarUpdate(1)
	h.engine.OnBarUpdate(1)
	h.engine.OnBarUpdate(1)
	if h.cache.Len() != 1 {
		t.Fatalf("cache has %d bars, want 1", h.cache.Len())
	}
}

func TestHealthFailureTearsDownAndReinitializes(t *testing.T) {
	h := newHarness(t)
	h.feed.bars = []models.CachedBar{bar(100), bar(200), bar(300)}

	h.engine.OnBarUpdate(1)
	if h.engine.State() != StateReady {
		t.Fatal("engine did not initialize")
	}

	// a dead sink inside the polling interval goes unnoticed
	h.sink.mu.Lock()
	h.sink.connected = false
	h.sink.mu.Unlock()
	h.engine.OnBarUpdate(2)
	if h.engine.State() != StateReady {
		t.Fatal("teardown before the health interval elapsed")
	}

	h.clock.advance(DefaultHealthInterval + time.Second)
	h.engine.OnBarUpdate(2)
	if h.engine.State() != StateUninitialized {
		t.Fatalf("state = %v after failed health check, want Uninitialized", h.engine.State())
	}
	if !h.sink.stopped {
		t.Fatal("sink was not stopped on teardown")
	}
	if h.cache.Len() != 0 {
		t.Fatalf("cache kept %d bars across teardown", h.cache.Len())
	}

	// next delivery call rebuilds the session from scratch
	h.engine.OnBarUpdate(1)
	if h.engine.State() != StateReady {
		t.Fatalf("state = %v after reinit, want Ready", h.engine.State())
	}
}

func TestInvalidateForcesReinit(t *testing.T) {
	h := newHarness(t)
	h.feed.bars = []models.CachedBar{bar(100), bar(200)}

	h.engine.OnBarUpdate(1)
	if h.cache.Len() != 1 {
		t.Fatalf("cache has %d bars, want 1", h.cache.Len())
	}

	h.engine.Invalidate()
	h.engine.OnBarUpdate(2)
	if h.cache.Len() != 1 {
		t.Fatalf("cache has %d bars after reinit, want 1 (index 2 completed bar 1)", h.cache.Len())
	}
	if h.engine.State() != StateReady {
		t.Fatalf("state = %v, want Ready", h.engine.State())
	}
}

func TestTicksBeforeReadyAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.feed.ready = false
	h.feed.bars = []models.CachedBar{bar(100), bar(200)}

	h.engine.OnTick(time.UnixMilli(50).UTC())

	h.feed.mu.Lock()
	h.feed.ready = true
	h.feed.mu.Unlock()
	h.engine.OnBarUpdate(1)
	h.engine.OnBarUpdate(2)
	// the pre-ready tick must not have latched the boundary
	if got := len(h.sink.records()); got != 0 {
		t.Fatalf("pushed %d bars, want 0: boundary latched before Ready", got)
	}
}

func TestPanicInDeliveryIsContained(t *testing.T) {
	h := newHarness(t)
	h.feed.bars = []models.CachedBar{bar(100)}
	h.engine.OnBarUpdate(1)

	h.feed.mu.Lock()
	h.feed.bars = nil
	h.feed.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic escaped the delivery context: %v", r)
		}
	}()
	// Candle error path, then a nil-map style failure via Close twice
	h.engine.OnBarUpdate(5)
	h.engine.Close()
	h.engine.Close()
}

func TestMalformedCandleSkipped(t *testing.T) {
	h := newHarness(t)
	bad := bar(100)
	bad.High = 5 // below low
	h.feed.bars = []models.CachedBar{bad, bar(200)}

	h.engine.OnBarUpdate(1)
	if h.cache.Len() != 0 {
		t.Fatalf("cache accepted a malformed bar")
	}
	h.engine.OnBarUpdate(2)
	if h.cache.Len() != 1 {
		t.Fatalf("cache has %d bars, want 1", h.cache.Len())
	}
}
