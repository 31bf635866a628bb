package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/units"
)

// DefaultListLimit caps GET /api/captures when no limit is given.
const DefaultListLimit = 50

// CaptureHandler serves stored captures.
//
//	GET    /api/captures?limit=N
//	GET    /api/captures/{id}
//	DELETE /api/captures/{id}
//	GET    /api/captures/{id}/image?width=N
//	GET    /api/captures/{id}/exports
type CaptureHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCaptureHandler creates a CaptureHandler. logger may be nil.
func NewCaptureHandler(s *store.Store, logger *zap.Logger) *CaptureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureHandler{store: s, logger: logger}
}

func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/captures")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.get(w, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	case sub == "image" && r.Method == http.MethodGet:
		h.image(w, r, id)
	case sub == "exports" && r.Method == http.MethodGet:
		h.exports(w, id)
	case sub == "" || sub == "image" || sub == "exports":
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type measurementResponse struct {
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	ValueCm    float64 `json:"value_cm"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Display    string  `json:"display"`
	Confidence float64 `json:"confidence"`
}

type captureResponse struct {
	ID           string                `json:"id"`
	Garment      string                `json:"garment"`
	Unit         string                `json:"unit"`
	HeightHintCm float64               `json:"height_hint_cm,omitempty"`
	HasImage     bool                  `json:"has_image"`
	TimestampMs  int64                 `json:"timestamp_ms"`
	CapturedAt   string                `json:"captured_at"`
	Measurements []measurementResponse `json:"measurements"`
}

type listCapturesResponse struct {
	Captures []captureResponse `json:"captures"`
	Total    int               `json:"total"`
}

func toCaptureResponse(c *store.Capture) captureResponse {
	u := units.Unit(c.Unit)
	resp := captureResponse{
		ID:           c.ID,
		Garment:      c.Garment,
		Unit:         c.Unit,
		HeightHintCm: c.HeightHintCm,
		HasImage:     c.ImagePath != "",
		TimestampMs:  c.TimestampMs,
		CapturedAt:   c.CapturedAt.Format(time.RFC3339),
		Measurements: make([]measurementResponse, 0, len(c.Measurements)),
	}
	for _, m := range c.Measurements {
		v := units.Convert(m.ValueCm, units.Cm, u)
		resp.Measurements = append(resp.Measurements, measurementResponse{
			Kind:       m.Kind,
			Label:      m.Label,
			ValueCm:    m.ValueCm,
			Value:      v,
			Unit:       c.Unit,
			Display:    units.Format(v, u),
			Confidence: m.Confidence,
		})
	}
	return resp
}

func (h *CaptureHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	captures, err := h.store.Captures().List(limit)
	if err != nil {
		h.logger.Error("list captures", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list captures")
		return
	}
	total, err := h.store.Captures().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count captures")
		return
	}

	resp := listCapturesResponse{
		Captures: make([]captureResponse, 0, len(captures)),
		Total:    total,
	}
	for _, c := range captures {
		resp.Captures = append(resp.Captures, toCaptureResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CaptureHandler) load(w http.ResponseWriter, id string) (*store.Capture, bool) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return nil, false
		}
		h.logger.Error("get capture", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get capture")
		return nil, false
	}
	return c, true
}

func (h *CaptureHandler) get(w http.ResponseWriter, id string) {
	if c, ok := h.load(w, id); ok {
		writeJSON(w, http.StatusOK, toCaptureResponse(c))
	}
}

// delete removes the capture row and its still image.
func (h *CaptureHandler) delete(w http.ResponseWriter, id string) {
	c, ok := h.load(w, id)
	if !ok {
		return
	}
	if err := h.store.Captures().Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete capture")
		return
	}
	if c.ImagePath != "" {
		if err := os.Remove(c.ImagePath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("capture image not removed", zap.String("path", c.ImagePath), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CaptureHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.load(w, id)
	if !ok {
		return
	}
	if c.ImagePath == "" {
		writeError(w, http.StatusNotFound, "Capture has no image")
		return
	}
	if _, err := os.Stat(c.ImagePath); err != nil {
		writeError(w, http.StatusNotFound, "Capture image missing")
		return
	}

	ws := r.URL.Query().Get("width")
	if ws == "" {
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, c.ImagePath)
		return
	}
	width, err := strconv.Atoi(ws)
	if err != nil || width < 1 || width > MaxThumbnailWidth {
		writeError(w, http.StatusBadRequest, "Invalid width")
		return
	}
	data, err := thumbnail(c.ImagePath, width)
	if err != nil {
		h.logger.Error("capture thumbnail", zap.String("path", c.ImagePath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to scale image")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (h *CaptureHandler) exports(w http.ResponseWriter, id string) {
	if _, ok := h.load(w, id); !ok {
		return
	}
	exports, err := h.store.Exports().ListByCapture(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exports")
		return
	}
	if exports == nil {
		exports = []*store.Export{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": exports})
}
