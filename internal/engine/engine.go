package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
	"BarBridge/internal/responder"
	"BarBridge/internal/session"
	applogger "BarBridge/pkg/logger"
)

// State of the lifecycle controller. There is no terminal state other than
// process shutdown; health failures loop back to Uninitialized.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// DefaultHealthInterval is how often endpoint liveness is polled, checked
// opportunistically during ingestion calls rather than on a timer thread.
const DefaultHealthInterval = 5 * time.Second

// SinkFactory builds a fresh push path for a session.
type SinkFactory func() (repository.BarSink, error)

// ResponderFactory builds a fresh pull path around the init-time snapshot.
type ResponderFactory func(snap responder.Snapshot) (*responder.Responder, error)

// Archiver is the optional durable mirror; nil disables archiving.
type Archiver interface {
	Offer(symbol string, bar models.CachedBar)
}

// Engine is the lifecycle controller and the only component the host ever
// calls. OnBarUpdate and OnTick run on the host's delivery context, strictly
// sequentially; everything network-facing lives behind the publisher and
// responder so ingestion never blocks on I/O. No panic escapes either entry
// point: the host's stability depends on these callbacks never throwing.
type Engine struct {
	feed     repository.CandleFeed
	cache    *barcache.Cache
	boundary *session.Boundary
	detector *session.Detector

	newSink      SinkFactory
	newResponder ResponderFactory
	archiver     Archiver

	clock          repository.Clock
	healthInterval time.Duration
	metrics        repository.Metrics
	log            *applogger.Logger

	// delivery-context state; only OnBarUpdate/OnTick mutate it
	state      State
	symbol     string
	timeframe  repository.Timeframe
	sink       repository.BarSink
	resp       *responder.Responder
	lastHealth time.Time

	// set from any context by Invalidate, consumed by the delivery context
	invalidated atomic.Bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithClock injects a clock, for tests.
func WithClock(c repository.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithHealthInterval overrides the health polling interval.
func WithHealthInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.healthInterval = d
		}
	}
}

// WithArchiver attaches the durable bar mirror.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// New creates an uninitialized engine.
func New(
	feed repository.CandleFeed,
	cache *barcache.Cache,
	newSink SinkFactory,
	newResponder ResponderFactory,
	metrics repository.Metrics,
	log *applogger.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		feed:           feed,
		cache:          cache,
		boundary:       session.NewBoundary(),
		detector:       session.NewDetector(),
		newSink:        newSink,
		newResponder:   newResponder,
		clock:          repository.SystemClock{},
		healthInterval: DefaultHealthInterval,
		metrics:        metrics,
		log:            log,
		state:          StateUninitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(atomic.LoadInt32((*int32)(&e.state))) }

func (e *Engine) setState(s State) { atomic.StoreInt32((*int32)(&e.state), int32(s)) }

// OnBarUpdate is the ingestion entry point, invoked by the host with the
// index of the bar presently forming.
func (e *Engine) OnBarUpdate(currentBarIndex int) {
	defer e.contain("bar update")

	if e.invalidated.Swap(false) && e.State() == StateReady {
		e.log.Info("configuration changed, tearing down for reinit")
		e.teardown()
	}

	if e.State() != StateReady {
		if !e.initialize() {
			return
		}
	} else {
		e.pollHealth()
		if e.State() != StateReady {
			return
		}
	}

	completed, ok := e.detector.OnFeedAdvance(currentBarIndex)
	if !ok {
		return
	}

	bar, err := e.feed.Candle(completed)
	if err != nil {
		e.metrics.RecordError("candle_fetch")
		e.log.Warn("completed candle unavailable",
			applogger.Int("index", completed), applogger.Error(err))
		return
	}
	bar.OpenTime = models.NormalizeTime(bar.OpenTime)
	bar.CloseTime = models.NormalizeTime(bar.CloseTime)
	if err := bar.Validate(); err != nil {
		e.metrics.RecordError("candle_invalid")
		e.log.Warn("skipping malformed candle",
			applogger.Int("index", completed), applogger.Error(err))
		return
	}

	e.cache.Insert(bar)
	if e.archiver != nil {
		e.archiver.Offer(e.symbol, bar)
	}

	if e.boundary.IsLive(bar.CloseTime) {
		e.sink.Enqueue(bar.Record(e.symbol, e.timeframe.Resolution, e.timeframe.Units))
	}
}

// OnTick observes one live quote/trade timestamp. The first tick of a ready
// session latches the replay/live boundary.
func (e *Engine) OnTick(ts time.Time) {
	defer e.contain("tick")
	if e.State() != StateReady {
		return
	}
	e.boundary.ObserveTick(models.NormalizeTime(ts))
}

// Invalidate forces a teardown and fresh initialization on the next
// ingestion call, e.g. after a remote endpoint change. Safe from any
// goroutine.
func (e *Engine) Invalidate() { e.invalidated.Store(true) }

// Close tears the session down. Call only after the host has stopped
// delivering.
func (e *Engine) Close() {
	defer e.contain("close")
	e.teardown()
}

// initialize performs the one-time setup once the host is ready: converts
// the timeframe, snapshots symbol and timeframe for the responder, and
// starts both endpoints. Returns true when the engine reached Ready.
func (e *Engine) initialize() bool {
	info, ok := e.feed.Ready()
	if !ok {
		return false // not-ready is silent; retried on the next delivery
	}
	tf, err := repository.ParseTimeframe(info.Timeframe)
	if err != nil {
		e.metrics.RecordError("timeframe_parse")
		e.log.Warn("host timeframe not convertible",
			applogger.String("timeframe", info.Timeframe), applogger.Error(err))
		return false
	}

	e.setState(StateInitializing)

	sink, err := e.newSink()
	if err != nil {
		e.metrics.RecordError("init_publisher")
		e.log.Error("publisher construction failed", applogger.Error(err))
		e.setState(StateUninitialized)
		return false
	}
	resp, err := e.newResponder(responder.Snapshot{Symbol: info.Symbol, Timeframe: tf})
	if err != nil {
		e.metrics.RecordError("init_responder")
		e.log.Error("responder construction failed", applogger.Error(err))
		sink.Stop()
		e.setState(StateUninitialized)
		return false
	}

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		e.failInit("publisher start failed", err, sink, nil)
		return false
	}
	if err := resp.Start(ctx); err != nil {
		e.failInit("responder start failed", err, sink, resp)
		return false
	}

	e.symbol = info.Symbol
	e.timeframe = tf
	e.sink = sink
	e.resp = resp
	e.lastHealth = e.clock.Now()
	e.setState(StateReady)
	e.metrics.SetConnected(true)
	e.log.Info("adapter initialized",
		applogger.String("symbol", e.symbol),
		applogger.String("timeframe", e.timeframe.String()))
	return true
}

func (e *Engine) failInit(msg string, err error, sink repository.BarSink, resp *responder.Responder) {
	e.metrics.RecordError("init")
	e.log.Error(msg, applogger.Error(err))
	if resp != nil {
		resp.Stop()
	}
	if sink != nil {
		sink.Stop()
	}
	e.setState(StateUninitialized)
}

// pollHealth checks endpoint liveness at most once per interval. Sustained
// disconnection of either endpoint answers with a full teardown; the next
// ingestion call rebuilds everything from scratch.
func (e *Engine) pollHealth() {
	now := e.clock.Now()
	if now.Sub(e.lastHealth) < e.healthInterval {
		return
	}
	e.lastHealth = now

	if e.sink.IsConnected() && e.resp.IsConnected() {
		return
	}
	e.metrics.RecordError("health_check")
	e.log.Warn("endpoint health check failed, reinitializing",
		applogger.Bool("publisher_up", e.sink.IsConnected()),
		applogger.Bool("responder_up", e.resp.IsConnected()))
	e.teardown()
}

// teardown stops the background loops before clearing any state, so a
// reinitialized session can never race a half-stopped old one. Safe to call
// redundantly.
func (e *Engine) teardown() {
	if e.resp != nil {
		e.resp.Stop()
		e.resp = nil
	}
	if e.sink != nil {
		e.sink.Stop()
		e.sink = nil
	}
	e.boundary.Reset()
	e.detector.Reset()
	e.cache.Reset()
	e.symbol = ""
	e.timeframe = repository.Timeframe{}
	e.setState(StateUninitialized)
	e.metrics.SetConnected(false)
}

// contain keeps delivery-context panics away from the host.
func (e *Engine) contain(op string) {
	if r := recover(); r != nil {
		e.metrics.RecordError("panic")
		e.log.Error("recovered panic in delivery context",
			applogger.String("op", op),
			applogger.Error(fmt.Errorf("%v", r)))
	}
}
