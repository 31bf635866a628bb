// Package metrics exposes Prometheus instrumentation for the station.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/bodyfit/internal/session"
)

// Metrics holds the station collectors. All methods are safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	framesTotal   *prometheus.CounterVec
	frameDuration prometheus.Histogram
	gateFailures  *prometheus.CounterVec
	capturesTotal *prometheus.CounterVec
	exportsTotal  *prometheus.CounterVec
	emitErrors    *prometheus.CounterVec
	liveClients   prometheus.Gauge
	cameraActive  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_frames_total",
			Help: "Frames run through the pipeline, by outcome.",
		}, []string{"outcome"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bodyfit_frame_duration_seconds",
			Help:    "Time spent detecting and processing one frame.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		gateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_quality_failures_total",
			Help: "Frames failing a quality check, by check.",
		}, []string{"check"}),
		capturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_captures_total",
			Help: "Captures taken, by garment.",
		}, []string{"garment"}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_exports_total",
			Help: "Exporter plugin runs, by plugin and result.",
		}, []string{"plugin", "result"}),
		emitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_emit_errors_total",
			Help: "Failed capture event publications, by sink.",
		}, []string{"sink"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bodyfit_live_clients",
			Help: "Connected live feed clients.",
		}),
		cameraActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bodyfit_camera_active",
			Help: "1 while the camera runs at the active frame rate.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodyfit_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bodyfit_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.framesTotal,
		m.frameDuration,
		m.gateFailures,
		m.capturesTotal,
		m.exportsTotal,
		m.emitErrors,
		m.liveClients,
		m.cameraActive,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveFrame records one pipeline result and how long it took.
func (m *Metrics) ObserveFrame(res session.FrameResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.frameDuration.Observe(elapsed.Seconds())

	switch {
	case res.Skipped:
		m.framesTotal.WithLabelValues("skipped").Inc()
		return
	case res.AllPassed:
		m.framesTotal.WithLabelValues("passed").Inc()
	default:
		m.framesTotal.WithLabelValues("gated").Inc()
	}

	for name, c := range res.Quality.Checks() {
		if c.Failed() {
			m.gateFailures.WithLabelValues(name).Inc()
		}
	}
}

func (m *Metrics) CaptureTaken(garment string) {
	if m == nil {
		return
	}
	m.capturesTotal.WithLabelValues(garment).Inc()
}

func (m *Metrics) ExportRun(plugin string, success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "failed"
	}
	m.exportsTotal.WithLabelValues(plugin, result).Inc()
}

func (m *Metrics) EmitFailed(sink string) {
	if m == nil {
		return
	}
	m.emitErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}

func (m *Metrics) SetCameraActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.cameraActive.Set(1)
	} else {
		m.cameraActive.Set(0)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming handlers working behind the wrapper.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the live feed upgrade to a websocket behind the wrapper.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// WrapHandler counts requests and their durations under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
