package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ayusman/bodyfit/internal/quality"
	"github.com/ayusman/bodyfit/internal/session"
)

func passing() quality.Result {
	ok := quality.Check{Passed: true, Severity: quality.Info}
	return quality.Result{Lighting: ok, Distance: ok, Stability: ok, Occlusion: ok, PoseInFrame: ok}
}

func TestObserveFrame(t *testing.T) {
	m := New(nil)

	m.ObserveFrame(session.FrameResult{Skipped: true}, time.Millisecond)

	q := passing()
	m.ObserveFrame(session.FrameResult{Quality: q, AllPassed: true}, 10*time.Millisecond)

	gated := passing()
	gated.Lighting = quality.Check{Message: "Increase lighting", Severity: quality.Warning}
	gated.Stability = quality.Check{Message: "Hold still…", Severity: quality.Info}
	m.ObserveFrame(session.FrameResult{Quality: gated}, 20*time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"skipped", testutil.ToFloat64(m.framesTotal.WithLabelValues("skipped")), 1},
		{"passed", testutil.ToFloat64(m.framesTotal.WithLabelValues("passed")), 1},
		{"gated", testutil.ToFloat64(m.framesTotal.WithLabelValues("gated")), 1},
		{"lighting failures", testutil.ToFloat64(m.gateFailures.WithLabelValues("lighting")), 1},
		// Pending checks are not failures.
		{"stability failures", testutil.ToFloat64(m.gateFailures.WithLabelValues("stability")), 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.frameDuration); n != 1 {
		t.Errorf("frame duration collectors = %d, want 1", n)
	}
}

func TestCountersAndGauges(t *testing.T) {
	m := New(nil)

	m.CaptureTaken("shirt")
	m.CaptureTaken("shirt")
	m.ExportRun("csv-export", true)
	m.ExportRun("csv-export", false)
	m.EmitFailed("kafka")
	m.SetLiveClients(3)
	m.SetCameraActive(true)

	if got := testutil.ToFloat64(m.capturesTotal.WithLabelValues("shirt")); got != 2 {
		t.Errorf("captures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.exportsTotal.WithLabelValues("csv-export", "failed")); got != 1 {
		t.Errorf("failed exports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.emitErrors.WithLabelValues("kafka")); got != 1 {
		t.Errorf("emit errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.liveClients); got != 3 {
		t.Errorf("live clients = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.cameraActive); got != 1 {
		t.Errorf("camera active = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveFrame(session.FrameResult{}, time.Millisecond)
	m.CaptureTaken("suit")
	m.ExportRun("x", true)
	m.EmitFailed("mqtt")
	m.SetLiveClients(1)
	m.SetCameraActive(false)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if m.WrapHandler("/x", h) == nil {
		t.Error("WrapHandler on nil metrics should return the handler")
	}
}

func TestHandlerAndWrap(t *testing.T) {
	m := New(nil)

	wrapped := m.WrapHandler("/api/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/health", "418")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}

	m.CaptureTaken("trousers")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `bodyfit_captures_total{garment="trousers"} 1`) {
		t.Errorf("metrics output missing capture counter:\n%s", rec.Body.String())
	}
}
