package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"BarBridge/internal/domain/models"
)

// WSBackend pushes bar records over a WebSocket connection to the remote
// subscriber. No acknowledgement is expected.
type WSBackend struct {
	url          string
	writeTimeout time.Duration

	conn      *websocket.Conn
	connected atomic.Bool
}

// NewWSBackend creates a WebSocket backend for the given subscriber URL.
func NewWSBackend(url string, writeTimeout time.Duration) *WSBackend {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSBackend{url: url, writeTimeout: writeTimeout}
}

// Connect dials the subscriber endpoint.
func (b *WSBackend) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("subscriber dial %s: %w", b.url, err)
	}
	b.conn = conn
	b.connected.Store(true)
	return nil
}

// Send writes one record. A write failure marks the backend disconnected;
// recovery is the lifecycle controller's job.
func (b *WSBackend) Send(_ context.Context, rec models.BarRecord) error {
	if b.conn == nil || !b.connected.Load() {
		return fmt.Errorf("subscriber not connected")
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	if err := b.conn.WriteJSON(rec); err != nil {
		b.connected.Store(false)
		return fmt.Errorf("subscriber write: %w", err)
	}
	return nil
}

// Connected reports link state.
func (b *WSBackend) Connected() bool { return b.connected.Load() }

// Close closes the connection.
func (b *WSBackend) Close() error {
	b.connected.Store(false)
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
