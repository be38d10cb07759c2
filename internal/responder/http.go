package responder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"BarBridge/internal/domain/models"
	"BarBridge/internal/status"
	xhttp "BarBridge/pkg/http"
	applogger "BarBridge/pkg/logger"
)

// HTTPTransport serves range queries and the status surface over Echo.
type HTTPTransport struct {
	core    *Core
	board   *status.Board
	log     *applogger.Logger
	srv     *xhttp.Server
	opts    []xhttp.ServerOption
	running atomic.Bool
}

// NewHTTPTransport builds the Echo transport. Server options (port,
// timeouts) come from the lifecycle controller's config.
func NewHTTPTransport(core *Core, board *status.Board, log *applogger.Logger, opts ...xhttp.ServerOption) *HTTPTransport {
	return &HTTPTransport{core: core, board: board, log: log, opts: opts}
}

// RegisterRoutes implements xhttp.Handler.
func (t *HTTPTransport) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/query", t.Query)
	g.GET("/status", t.Status)
}

// Query answers one range query.
func (t *HTTPTransport) Query(c echo.Context) error {
	start := time.Now()
	req := &models.RangeQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		t.core.metrics.RecordReceiveFailure()
		return xhttp.BadRequestResponse(c, verr)
	}

	resp := t.core.Answer(*req)
	if resp.Debug != "" {
		t.log.Warn("range query rejected",
			applogger.String("request_id", req.RequestID),
			applogger.String("reason", resp.Debug))
	}
	t.core.metrics.RecordLatency("range_query", time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, resp)
}

// Status exposes the read-only monitoring snapshot.
func (t *HTTPTransport) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, t.board.Current())
}

// Start brings the listener up.
func (t *HTTPTransport) Start(context.Context) error {
	opts := append([]xhttp.ServerOption{xhttp.WithLogger(t.log)}, t.opts...)
	t.srv = xhttp.NewServer(t, opts...)
	if err := t.srv.Start(); err != nil {
		return err
	}
	t.running.Store(true)
	return nil
}

// Stop shuts the listener down. Idempotent.
func (t *HTTPTransport) Stop() {
	if !t.running.Swap(false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.srv.Stop(ctx); err != nil {
		t.log.Warn("query server shutdown", applogger.Error(err))
	}
}

// IsConnected reports whether the listener is up. A bind failure surfaces
// here so the health poll tears the session down instead of trusting a
// listener that never came up.
func (t *HTTPTransport) IsConnected() bool {
	return t.running.Load() && t.srv.Running()
}
