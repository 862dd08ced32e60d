package api

import (
	"net/http"
)

type muteRequest struct {
	Muted bool `json:"muted"`
}

type waveformResponse struct {
	Waveform string `json:"waveform"`
}

// state handles GET /api/state.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Status())
}

// powerOn handles POST /api/power/on. Camera or detector failures are
// reported as 503 so the client can show the alert.
func (h *Handler) powerOn(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Start(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.app.Status())
}

// powerOff handles POST /api/power/off.
func (h *Handler) powerOff(w http.ResponseWriter, r *http.Request) {
	h.app.Stop()
	writeJSON(w, http.StatusOK, h.app.Status())
}

// nextWaveform handles POST /api/waveform/next.
func (h *Handler) nextWaveform(w http.ResponseWriter, r *http.Request) {
	wf := h.app.NextWaveform()
	writeJSON(w, http.StatusOK, waveformResponse{Waveform: wf.String()})
}

// mute handles PUT /api/mute.
func (h *Handler) mute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.app.SetMute(req.Muted)
	writeJSON(w, http.StatusOK, h.app.Status())
}
