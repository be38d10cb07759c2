package archive

import (
	"context"
	"sync"
	"time"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
	applogger "BarBridge/pkg/logger"
)

// Writer mirrors completed bars into a durable store on a background worker.
// Offer never blocks: when the buffer is full the bar is dropped and counted,
// the in-memory cache remains the source of truth for queries.
type Writer struct {
	store   repository.BarArchive
	metrics repository.Metrics
	log     *applogger.Logger
	timeout time.Duration

	in      chan entry
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type entry struct {
	symbol string
	bar    models.CachedBar
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	bufferSize int
	timeout    time.Duration
}

// WithWriterBuffer sets the inbound buffer size.
func WithWriterBuffer(n int) WriterOption {
	return func(c *writerConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) WriterOption {
	return func(c *writerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewWriter wraps a store.
func NewWriter(store repository.BarArchive, metrics repository.Metrics, log *applogger.Logger, opts ...WriterOption) *Writer {
	cfg := &writerConfig{bufferSize: 4096, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Writer{
		store:   store,
		metrics: metrics,
		log:     log,
		timeout: cfg.timeout,
		in:      make(chan entry, cfg.bufferSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the store worker.
func (w *Writer) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop()
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case e := <-w.in:
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			if err := w.store.Store(ctx, e.symbol, e.bar); err != nil {
				w.metrics.RecordError("archive_store")
				w.log.Error("bar archive failed",
					applogger.String("symbol", e.symbol),
					applogger.Int64("close_ms", e.bar.Key()),
					applogger.Error(err))
			}
			cancel()
		}
	}
}

// Offer hands a bar to the worker without blocking.
func (w *Writer) Offer(symbol string, bar models.CachedBar) {
	select {
	case w.in <- entry{symbol: symbol, bar: bar}:
	default:
		w.metrics.RecordError("archive_drop")
	}
}

// Stop halts the worker and closes the store. Idempotent.
func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	if err := w.store.Close(); err != nil {
		w.log.Warn("archive close", applogger.Error(err))
	}
}
