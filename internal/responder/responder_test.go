package responder

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"BarBridge/internal/barcache"
	"BarBridge/internal/domain/models"
	"BarBridge/internal/domain/repository"
	"BarBridge/internal/status"
	xhttp "BarBridge/pkg/http"
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

func filledCache(t *testing.T, closeMs ...int64) *barcache.Cache {
	t.Helper()
	c := barcache.New(barcache.MinCapacity)
	for _, ms := range closeMs {
		close := time.UnixMilli(ms).UTC()
		c.Insert(models.CachedBar{
			OpenTime:  close.Add(-time.Minute),
			CloseTime: close,
			Open:      1, High: 2, Low: 0.5, Close: 1.5, Volume: 3,
		})
	}
	return c
}

func testCore(t *testing.T, closeMs ...int64) *Core {
	t.Helper()
	snap := Snapshot{Symbol: "BTCUSDT", Timeframe: repository.Timeframe{Resolution: "m", Units: 1}}
	return NewCore(snap, filledCache(t, closeMs...), nopMetrics{})
}

func TestAnswerCollectsRange(t *testing.T) {
	core := testCore(t, 100, 200, 300)
	resp := core.Answer(models.RangeQuery{RequestID: "r1", StartMs: 150, EndMs: 300})
	if resp.Debug != "" {
		t.Fatalf("unexpected debug %q", resp.Debug)
	}
	if resp.Count != 2 || len(resp.Bars) != 2 {
		t.Fatalf("count = %d bars = %d", resp.Count, len(resp.Bars))
	}
	if resp.Bars[0].CloseTimeMs != 200 || resp.Bars[1].CloseTimeMs != 300 {
		t.Fatalf("bars out of order: %+v", resp.Bars)
	}
	if resp.Bars[0].Resolution != "m" || resp.Bars[0].Units != 1 {
		t.Fatalf("record timeframe = %s/%d", resp.Bars[0].Resolution, resp.Bars[0].Units)
	}
	if resp.RequestID != "r1" || resp.Symbol != "BTCUSDT" {
		t.Fatalf("echo fields: %+v", resp)
	}
}

func TestAnswerEmptyRangeIsNotAnError(t *testing.T) {
	core := testCore(t, 100)
	resp := core.Answer(models.RangeQuery{RequestID: "r2", StartMs: 5000, EndMs: 9000})
	if resp.Count != 0 || resp.Debug != "" {
		t.Fatalf("empty range: count=%d debug=%q", resp.Count, resp.Debug)
	}
	if resp.Bars == nil {
		t.Fatalf("bars must not be nil")
	}
}

func TestValidationOrdering(t *testing.T) {
	core := testCore(t, 100)

	// symbol mismatch wins even when the timeframe also mismatches
	resp := core.Answer(models.RangeQuery{
		RequestID: "r3", Symbol: "ETHUSDT", Resolution: "h", Units: 4, StartMs: 0, EndMs: 1000,
	})
	if resp.Debug != models.DebugSymbolMismatch {
		t.Fatalf("debug = %q, want symbol mismatch", resp.Debug)
	}
	if resp.Count != 0 || len(resp.Bars) != 0 {
		t.Fatalf("rejected query returned bars")
	}

	resp = core.Answer(models.RangeQuery{
		RequestID: "r4", Symbol: "BTCUSDT", Resolution: "h", Units: 4, StartMs: 0, EndMs: 1000,
	})
	if resp.Debug != models.DebugTimeframeMismatch {
		t.Fatalf("debug = %q, want timeframe mismatch", resp.Debug)
	}
}

func TestNotInitializedWinsOverEverything(t *testing.T) {
	core := testCore(t, 100)
	core.SetReady(false)
	resp := core.Answer(models.RangeQuery{RequestID: "r5", Symbol: "WRONG", StartMs: 0, EndMs: 1000})
	if resp.Debug != models.DebugNotInitialized {
		t.Fatalf("debug = %q, want not initialized", resp.Debug)
	}
}

func TestHTTPQueryEndpoint(t *testing.T) {
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	core := testCore(t, 100, 200, 300)
	transport := NewHTTPTransport(core, status.NewBoard(nopMetrics{}), l)

	e := echo.New()
	transport.RegisterRoutes(e)

	body := `{"requestId":"q1","startTimeMs":150,"endTimeMs":300}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var envelope struct {
		Data models.RangeResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Count != 2 || envelope.Data.RequestID != "q1" {
		t.Fatalf("response = %+v", envelope.Data)
	}
}

func TestBindFailureSurfacesThroughIsConnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	core := testCore(t, 100)
	transport := NewHTTPTransport(core, status.NewBoard(nopMetrics{}), l,
		xhttp.WithHost("127.0.0.1"), xhttp.WithPort(port))

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer transport.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for transport.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("IsConnected stayed true on an occupied port")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHTTPQueryRejectsMissingRequestID(t *testing.T) {
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	core := testCore(t, 100)
	transport := NewHTTPTransport(core, status.NewBoard(nopMetrics{}), l)

	e := echo.New()
	transport.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"startTimeMs":0,"endTimeMs":1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)

	var envelope struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", envelope.Status)
	}
}
