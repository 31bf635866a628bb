package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/bodyfit/internal/autocapture"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/units"
)

// newTestStore creates a Store with a temporary database.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCapture(t *testing.T, s *store.Store, id, unit, imagePath string, at time.Time) {
	t.Helper()
	c := &store.Capture{
		ID:          id,
		Garment:     "shirt",
		Unit:        unit,
		ImagePath:   imagePath,
		TimestampMs: 2970,
		CapturedAt:  at,
		Measurements: []store.Measurement{
			{Kind: "chest", Label: "Chest", ValueCm: 96.52, Confidence: 0.8},
			{Kind: "waist", Label: "Waist", ValueCm: 81.28, Confidence: 0.75},
		},
	}
	if err := s.Captures().Create(c); err != nil {
		t.Fatalf("failed to create capture: %v", err)
	}
}

func TestCaptureHandler_ListAndGet(t *testing.T) {
	s := newTestStore(t)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedCapture(t, s, "old", "cm", "", t0)
	seedCapture(t, s, "new", "in", "", t0.Add(time.Minute))
	handler := NewCaptureHandler(s, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var list listCapturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 || len(list.Captures) != 1 || list.Captures[0].ID != "new" {
		t.Fatalf("list = %+v", list)
	}

	m := list.Captures[0].Measurements[0]
	if m.Unit != "in" || m.Display != "38.0 in" || m.ValueCm != 96.52 {
		t.Errorf("measurement = %+v", m)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures/old", nil))
	var got captureResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if rec.Code != http.StatusOK || got.ID != "old" || got.Measurements[1].Display != "81.3 cm" {
		t.Errorf("GET old = %d %+v", rec.Code, got)
	}
}

func TestCaptureHandler_Errors(t *testing.T) {
	handler := NewCaptureHandler(newTestStore(t), nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/captures/missing", http.StatusNotFound},
		{http.MethodDelete, "/api/captures/missing", http.StatusNotFound},
		{http.MethodGet, "/api/captures/missing/image", http.StatusNotFound},
		{http.MethodGet, "/api/captures?limit=abc", http.StatusBadRequest},
		{http.MethodGet, "/api/captures?limit=-1", http.StatusBadRequest},
		{http.MethodPost, "/api/captures", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/captures/x", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/captures/x/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s %s Content-Type = %q", tt.method, tt.path, ct)
		}
	}
}

func TestCaptureHandler_ImageAndDelete(t *testing.T) {
	s := newTestStore(t)
	img := filepath.Join(t.TempDir(), "c-1.jpg")
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	os.WriteFile(img, jpeg, 0644)
	seedCapture(t, s, "c-1", "cm", img, time.Now().UTC())
	s.Exports().Create(&store.Export{CaptureID: "c-1", PluginName: "csv-export", Success: true})

	handler := NewCaptureHandler(s, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures/c-1/image", nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), jpeg) {
		t.Errorf("image = %d, %x", rec.Code, rec.Body.Bytes())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures/c-1/exports", nil))
	var exports struct {
		Exports []store.Export `json:"exports"`
	}
	json.NewDecoder(rec.Body).Decode(&exports)
	if len(exports.Exports) != 1 || exports.Exports[0].PluginName != "csv-export" {
		t.Errorf("exports = %+v", exports)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/captures/c-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", rec.Code)
	}
	if _, err := os.Stat(img); !os.IsNotExist(err) {
		t.Error("delete should remove the still image")
	}
	if _, err := s.Captures().GetByID("c-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByID after delete = %v", err)
	}
}

func TestCaptureHandler_Thumbnail(t *testing.T) {
	s := newTestStore(t)
	src := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	img := filepath.Join(t.TempDir(), "c-1.jpg")
	os.WriteFile(img, buf.Bytes(), 0644)
	seedCapture(t, s, "c-1", "cm", img, time.Now().UTC())

	handler := NewCaptureHandler(s, nil)

	tests := []struct {
		query      string
		wantStatus int
		wantSize   image.Point
	}{
		{"?width=80", http.StatusOK, image.Pt(80, 60)},
		{"?width=640", http.StatusOK, image.Pt(320, 240)},
		{"?width=0", http.StatusBadRequest, image.Point{}},
		{"?width=wide", http.StatusBadRequest, image.Point{}},
		{"?width=5000", http.StatusBadRequest, image.Point{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures/c-1/image"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			got, err := jpeg.Decode(rec.Body)
			if err != nil {
				t.Fatalf("jpeg.Decode() error = %v", err)
			}
			if size := got.Bounds().Size(); size != tt.wantSize {
				t.Errorf("size = %v, want %v", size, tt.wantSize)
			}
		})
	}
}

type fakeSession struct {
	status   session.Status
	failUnit bool
}

func (f *fakeSession) Status() session.Status { return f.status }

func (f *fakeSession) SetGarment(k garment.Kind) error {
	f.status.Garment = k
	return nil
}

func (f *fakeSession) SetUnit(u units.Unit) error {
	if f.failUnit {
		return errors.New("unit locked")
	}
	f.status.Unit = u
	return nil
}

func (f *fakeSession) SetHeightHint(cm float64) error {
	f.status.HeightHintCm = cm
	return nil
}

func TestSessionHandler(t *testing.T) {
	fake := &fakeSession{status: session.Status{Garment: garment.Shirt, Unit: units.Cm, State: autocapture.Idle}}
	handler := NewSessionHandler(fake)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	var status session.Status
	json.NewDecoder(rec.Body).Decode(&status)
	if rec.Code != http.StatusOK || status.Garment != garment.Shirt {
		t.Fatalf("GET = %d %+v", rec.Code, status)
	}

	body := `{"garment":"Suit","unit":"inches","height_cm":180}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/session", bytes.NewBufferString(body)))
	json.NewDecoder(rec.Body).Decode(&status)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d", rec.Code)
	}
	if status.Garment != garment.Suit || status.Unit != units.Inch || status.HeightHintCm != 180 {
		t.Errorf("status after PUT = %+v", status)
	}
}

func TestSessionHandler_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"bad json", http.MethodPut, "{", http.StatusBadRequest},
		{"bad garment", http.MethodPut, `{"garment":"hat"}`, http.StatusBadRequest},
		{"bad unit", http.MethodPut, `{"unit":"ft"}`, http.StatusBadRequest},
		{"negative height", http.MethodPut, `{"height_cm":-1}`, http.StatusBadRequest},
		{"controller error", http.MethodPut, `{"unit":"in"}`, http.StatusInternalServerError},
		{"post", http.MethodPost, `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSession{status: session.Status{Garment: garment.Shirt, Unit: units.Cm}, failUnit: true}
			rec := httptest.NewRecorder()
			NewSessionHandler(fake).ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/session", bytes.NewBufferString(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			// A rejected request changes nothing.
			if tt.want == http.StatusBadRequest && fake.status.Garment != garment.Shirt {
				t.Error("invalid request should not apply any field")
			}
		})
	}
}

func TestGarmentsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	GarmentsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/garments", nil))

	var resp struct {
		Garments []garmentResponse `json:"garments"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Garments) != 3 {
		t.Fatalf("garments = %d, want 3", len(resp.Garments))
	}
	if resp.Garments[0].Kind != "shirt" || resp.Garments[0].Region != "upper" || len(resp.Garments[0].Measurements) != 6 {
		t.Errorf("first garment = %+v", resp.Garments[0])
	}

	rec = httptest.NewRecorder()
	GarmentsHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/garments", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE = %d, want 405", rec.Code)
	}
}
