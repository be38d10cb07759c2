package publisher

import (
	"context"
	"sync"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
	applogger "BarBridge/pkg/logger"
)

// Backend is one concrete push transport.
type Backend interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, rec models.BarRecord) error
	Connected() bool
	Close() error
}

// Pusher is the fire-and-forget push path. Enqueue never blocks the caller;
// the background sender owns every interaction with the backend. The pusher
// never tries to heal a dead link itself, the lifecycle controller notices
// via IsConnected and rebuilds everything.
type Pusher struct {
	backend Backend
	metrics repository.Metrics
	log     *applogger.Logger

	out     chan models.BarRecord
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// Option configures a Pusher.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the outbound buffer size.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// New creates a Pusher around the given backend.
func New(backend Backend, metrics repository.Metrics, log *applogger.Logger, opts ...Option) *Pusher {
	o := &options{bufferSize: 1024}
	for _, opt := range opts {
		opt(o)
	}
	return &Pusher{
		backend: backend,
		metrics: metrics,
		log:     log,
		out:     make(chan models.BarRecord, o.bufferSize),
	}
}

// Start connects the backend and launches the sender loop. A failed connect
// still starts the loop (records are dropped); the health check will notice
// the dead link and tear the component down. A stopped pusher can be started
// again; each Start owns a fresh stop channel.
func (p *Pusher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	if err := p.backend.Connect(ctx); err != nil {
		p.metrics.RecordError("publish_connect")
		p.log.Warn("publisher connect failed", applogger.Error(err))
	}

	p.wg.Add(1)
	go p.senderLoop(stopCh)
	return nil
}

func (p *Pusher) senderLoop(stopCh <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case rec := <-p.out:
			if !p.backend.Connected() {
				p.metrics.RecordError("publish_drop_disconnected")
				continue
			}
			if err := p.backend.Send(context.Background(), rec); err != nil {
				p.metrics.RecordSendFailure()
				p.log.Error("bar push failed",
					applogger.String("symbol", rec.Symbol),
					applogger.Int64("close_ms", rec.CloseTimeMs),
					applogger.Error(err))
				continue
			}
			p.metrics.RecordBarPushed(rec.Symbol)
		}
	}
}

// Enqueue hands a record to the sender without blocking. When the buffer is
// full the record is dropped; ingestion must never wait on network I/O.
func (p *Pusher) Enqueue(rec models.BarRecord) {
	select {
	case p.out <- rec:
	default:
		p.metrics.RecordError("publish_drop_saturated")
	}
}

// IsConnected is a best-effort liveness check.
func (p *Pusher) IsConnected() bool { return p.backend.Connected() }

// Stop halts the sender loop and closes the backend. Safe to call more than
// once and before Start ever succeeded.
func (p *Pusher) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopCh := p.stopCh
	p.mu.Unlock()

	close(stopCh)
	p.wg.Wait()
	if err := p.backend.Close(); err != nil {
		p.log.Warn("publisher close", applogger.Error(err))
	}
}
