package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/units"
)

// SessionController is the live session as the API sees it.
type SessionController interface {
	Status() session.Status
	SetGarment(k garment.Kind) error
	SetUnit(u units.Unit) error
	SetHeightHint(cm float64) error
}

// SessionHandler serves GET and PUT /api/session.
type SessionHandler struct {
	session SessionController
}

func NewSessionHandler(s SessionController) *SessionHandler {
	return &SessionHandler{session: s}
}

// updateSessionRequest carries the settings to change; absent fields are
// left alone.
type updateSessionRequest struct {
	Garment  *string  `json:"garment"`
	Unit     *string  `json:"unit"`
	HeightCm *float64 `json:"height_cm"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.session.Status())
	case http.MethodPut:
		h.update(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *SessionHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate everything before applying anything.
	var (
		g   garment.Kind
		u   units.Unit
		err error
	)
	if req.Garment != nil {
		if g, err = garment.Parse(*req.Garment); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Unit != nil {
		if u, err = units.Parse(*req.Unit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.HeightCm != nil && *req.HeightCm < 0 {
		writeError(w, http.StatusBadRequest, "height_cm must not be negative")
		return
	}

	if req.Garment != nil {
		if err := h.session.SetGarment(g); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.Unit != nil {
		if err := h.session.SetUnit(u); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.HeightCm != nil {
		if err := h.session.SetHeightHint(*req.HeightCm); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, h.session.Status())
}

type garmentMeasurement struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

type garmentResponse struct {
	Kind         string               `json:"kind"`
	Region       string               `json:"region"`
	Measurements []garmentMeasurement `json:"measurements"`
}

// GarmentsHandler serves GET /api/garments, the garment profiles a session
// can switch to.
func GarmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	kinds := garment.Kinds()
	resp := make([]garmentResponse, 0, len(kinds))
	for _, k := range kinds {
		p, _ := garment.Lookup(k)
		gr := garmentResponse{Kind: string(p.Kind), Region: string(p.Region)}
		for _, m := range p.Measurements {
			gr.Measurements = append(gr.Measurements, garmentMeasurement{Kind: string(m), Label: m.Label()})
		}
		resp = append(resp, gr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"garments": resp})
}
