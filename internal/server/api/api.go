// Package api provides the HTTP API handlers for the instrument.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handchord/internal/app"
	"github.com/gorilla/mux"
)

// Handler serves the instrument API.
type Handler struct {
	app *app.App
}

// NewHandler creates a new Handler for the given instrument.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

// Register mounts every API route on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/state", h.state).Methods(http.MethodGet)
	r.HandleFunc("/api/power/on", h.powerOn).Methods(http.MethodPost)
	r.HandleFunc("/api/power/off", h.powerOff).Methods(http.MethodPost)
	r.HandleFunc("/api/waveform/next", h.nextWaveform).Methods(http.MethodPost)
	r.HandleFunc("/api/mute", h.mute).Methods(http.MethodPut)

	r.HandleFunc("/api/knobs", h.listKnobs).Methods(http.MethodGet)
	r.HandleFunc("/api/knobs/{name}", h.getKnob).Methods(http.MethodGet)
	r.HandleFunc("/api/knobs/{name}", h.setKnob).Methods(http.MethodPut)
	r.HandleFunc("/api/knobs/{name}/drag", h.dragKnob).Methods(http.MethodPost)
	r.HandleFunc("/api/knobs/{name}/reset", h.resetKnob).Methods(http.MethodPost)

	r.HandleFunc("/api/recording/start", h.startRecording).Methods(http.MethodPost)
	r.HandleFunc("/api/recording/finish", h.finishRecording).Methods(http.MethodPost)
	r.HandleFunc("/api/recordings", h.listRecordings).Methods(http.MethodGet)
	r.HandleFunc("/api/recordings/{id}", h.downloadRecording).Methods(http.MethodGet)
	r.HandleFunc("/api/recordings/{id}", h.deleteRecording).Methods(http.MethodDelete)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeBody decodes an optional JSON body into v; an empty body is allowed.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
