package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	applogger "BarBridge/pkg/logger"

	"github.com/gorilla/websocket"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTradeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// Repeated connect/read/drop cycles must not accumulate ping senders. Each
// Read call owns one ping loop that dies with its read loop.
func TestRepeatedReadCyclesLeaveNoPingLoops(t *testing.T) {
	srv := newTradeServer(t)
	defer srv.Close()

	s := NewStream("", wsURL(srv), "BINANCE:BTCUSDT", time.Millisecond, time.Millisecond, testLogger(t))
	ctx := context.Background()

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		if err := s.Connect(ctx); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		if err := s.Subscribe(ctx); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
		trades, errs := s.Read(ctx)
		if err := s.Close(); err != nil {
			t.Logf("close %d: %v", i, err)
		}
		for trades != nil || errs != nil {
			select {
			case _, ok := <-trades:
				if !ok {
					trades = nil
				}
			case _, ok := <-errs:
				if !ok {
					errs = nil
				}
			}
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before+2 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines before=%d after=%d, ping loops leaked", before, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// A subscribe racing the previous connection's pings must not trip the
// single-writer rule of the websocket package.
func TestSubscribeSerializedAgainstPings(t *testing.T) {
	srv := newTradeServer(t)
	defer srv.Close()

	s := NewStream("", wsURL(srv), "BINANCE:BTCUSDT", time.Millisecond, time.Nanosecond, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, _ = s.Read(ctx)
	for i := 0; i < 50; i++ {
		if err := s.Subscribe(ctx); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
	}
	_ = s.Close()
}
