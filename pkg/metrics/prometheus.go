package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsPushed   *prometheus.CounterVec
	barsQueried  *prometheus.CounterVec
	sendFailures prometheus.Counter
	recvFailures prometheus.Counter
	errorsTotal  *prometheus.CounterVec
	connected    prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsPushed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbridge_bars_pushed_total",
				Help: "Completed live bars pushed to the remote subscriber",
			},
			[]string{"symbol"},
		),
		barsQueried: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbridge_bars_queried_total",
				Help: "Bars returned by range queries",
			},
			[]string{"symbol"},
		),
		sendFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "barbridge_send_failures_total",
				Help: "Failed push attempts",
			},
		),
		recvFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "barbridge_receive_failures_total",
				Help: "Failed query receive/decode attempts",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbridge_errors_total",
				Help: "Total errors by kind",
			},
			[]string{"type"},
		),
		connected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "barbridge_connected",
				Help: "1 when the adapter endpoints are up",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barbridge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBarPushed(symbol string) {
	r.barsPushed.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordBarsQueried(symbol string, n int) {
	r.barsQueried.WithLabelValues(symbol).Add(float64(n))
}

func (r *Recorder) RecordSendFailure() { r.sendFailures.Inc() }

func (r *Recorder) RecordReceiveFailure() { r.recvFailures.Inc() }

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetConnected(up bool) {
	if up {
		r.connected.Set(1)
	} else {
		r.connected.Set(0)
	}
}
