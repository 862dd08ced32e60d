package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/handchord/internal/control"
	"github.com/gorilla/mux"
)

type setKnobRequest struct {
	Value *float64 `json:"value"`
}

type dragKnobRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type listKnobsResponse struct {
	Knobs []control.KnobState `json:"knobs"`
}

// listKnobs handles GET /api/knobs.
func (h *Handler) listKnobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listKnobsResponse{Knobs: h.app.Surface().Knobs()})
}

// getKnob handles GET /api/knobs/{name}.
func (h *Handler) getKnob(w http.ResponseWriter, r *http.Request) {
	k, err := h.app.Surface().Knob(mux.Vars(r)["name"])
	if err != nil {
		writeKnobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// setKnob handles PUT /api/knobs/{name}. The value is quantized and clamped.
func (h *Handler) setKnob(w http.ResponseWriter, r *http.Request) {
	var req setKnobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "Value is required")
		return
	}

	k, err := h.app.Surface().Set(mux.Vars(r)["name"], *req.Value)
	if err != nil {
		writeKnobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// dragKnob handles POST /api/knobs/{name}/drag with the pointer offset from
// the knob center.
func (h *Handler) dragKnob(w http.ResponseWriter, r *http.Request) {
	var req dragKnobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	k, err := h.app.Surface().Drag(mux.Vars(r)["name"], req.DX, req.DY)
	if err != nil {
		writeKnobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// resetKnob handles POST /api/knobs/{name}/reset.
func (h *Handler) resetKnob(w http.ResponseWriter, r *http.Request) {
	k, err := h.app.Surface().Reset(mux.Vars(r)["name"])
	if err != nil {
		writeKnobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func writeKnobError(w http.ResponseWriter, err error) {
	if errors.Is(err, control.ErrUnknownKnob) {
		writeError(w, http.StatusNotFound, "Knob not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
