package status

import (
	"context"
	"sync"
	"time"

	"BarBridge/internal/domain/repository"
	applogger "BarBridge/pkg/logger"
)

// Board is the read-only health/monitoring surface. It implements the domain
// Metrics port by counting locally and delegating to an inner recorder
// (Prometheus in production), and it implements the logger collector's
// Publisher so the last logged error lands here too.
type Board struct {
	inner repository.Metrics

	mu          sync.RWMutex
	barsPushed  int64
	barsQueried int64
	sendFails   int64
	recvFails   int64
	connected   bool
	lastError   string
	lastErrorAt time.Time
}

// Snapshot is the externally visible state of the adapter.
type Snapshot struct {
	BarsPushed      int64      `json:"barsPushed"`
	BarsQueried     int64      `json:"barsQueried"`
	SendFailures    int64      `json:"sendFailures"`
	ReceiveFailures int64      `json:"receiveFailures"`
	Connected       bool       `json:"connected"`
	LastError       string     `json:"lastError,omitempty"`
	LastErrorAt     *time.Time `json:"lastErrorAt,omitempty"`
}

// NewBoard wraps an inner metrics recorder.
func NewBoard(inner repository.Metrics) *Board {
	return &Board{inner: inner}
}

func (b *Board) RecordBarPushed(symbol string) {
	b.mu.Lock()
	b.barsPushed++
	b.mu.Unlock()
	b.inner.RecordBarPushed(symbol)
}

func (b *Board) RecordBarsQueried(symbol string, n int) {
	b.mu.Lock()
	b.barsQueried += int64(n)
	b.mu.Unlock()
	b.inner.RecordBarsQueried(symbol, n)
}

func (b *Board) RecordSendFailure() {
	b.mu.Lock()
	b.sendFails++
	b.mu.Unlock()
	b.inner.RecordSendFailure()
}

func (b *Board) RecordReceiveFailure() {
	b.mu.Lock()
	b.recvFails++
	b.mu.Unlock()
	b.inner.RecordReceiveFailure()
}

func (b *Board) RecordError(kind string) {
	b.inner.RecordError(kind)
}

func (b *Board) RecordLatency(op string, seconds float64) {
	b.inner.RecordLatency(op, seconds)
}

func (b *Board) SetConnected(up bool) {
	b.mu.Lock()
	b.connected = up
	b.mu.Unlock()
	b.inner.SetConnected(up)
}

// PublishMessage satisfies the logger collector's Publisher: aggregated error
// entries flow in and the most recent one becomes the displayed last error.
func (b *Board) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	entries, ok := payload.([]applogger.AggregatedLogEntry)
	if !ok || len(entries) == 0 {
		return nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.LastSeen.After(latest.LastSeen) {
			latest = e
		}
	}
	b.mu.Lock()
	b.lastError = latest.Message
	b.lastErrorAt = latest.LastSeen
	b.mu.Unlock()
	return nil
}

// Current returns a copy of the board state.
func (b *Board) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		BarsPushed:      b.barsPushed,
		BarsQueried:     b.barsQueried,
		SendFailures:    b.sendFails,
		ReceiveFailures: b.recvFails,
		Connected:       b.connected,
		LastError:       b.lastError,
	}
	if !b.lastErrorAt.IsZero() {
		at := b.lastErrorAt
		s.LastErrorAt = &at
	}
	return s
}
