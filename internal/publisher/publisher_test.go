package publisher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"BarBridge/internal/domain/models"
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

type fakeBackend struct {
	mu        sync.Mutex
	sent      []models.BarRecord
	connected bool
	dialErr   error
}

func (f *fakeBackend) Connect(context.Context) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Send(_ context.Context, rec models.BarRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("down")
	}
	f.sent = append(f.sent, rec)
	return nil
}

func (f *fakeBackend) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func rec(i int) models.BarRecord {
	return models.BarRecord{Symbol: "BTCUSDT", Resolution: "m", Units: 1, CloseTimeMs: int64(i)}
}

func TestEnqueueNeverBlocksWhenLinkDown(t *testing.T) {
	backend := &fakeBackend{dialErr: fmt.Errorf("no route")}
	p := New(backend, nopMetrics{}, testLogger(t), WithBufferSize(64))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			p.Enqueue(rec(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("enqueue blocked with a dead link")
	}
	if backend.sentCount() != 0 {
		t.Fatalf("dead link delivered %d records", backend.sentCount())
	}
}

func TestDeliversWhenConnected(t *testing.T) {
	backend := &fakeBackend{}
	p := New(backend, nopMetrics{}, testLogger(t), WithBufferSize(64))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	for i := 0; i < 10; i++ {
		p.Enqueue(rec(i))
	}
	deadline := time.Now().Add(2 * time.Second)
	for backend.sentCount() < 10 {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d of 10", backend.sentCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	p := New(backend, nopMetrics{}, testLogger(t))

	// stop before any start must be a no-op
	p.Stop()

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.Stop()
	p.Stop()
}

func TestRestartAfterStopDelivers(t *testing.T) {
	backend := &fakeBackend{}
	p := New(backend, nopMetrics{}, testLogger(t), WithBufferSize(64))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	p.Stop()

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Enqueue(rec(i))
	}
	deadline := time.Now().Add(2 * time.Second)
	for backend.sentCount() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("restarted pusher delivered %d of 5", backend.sentCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
