package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayusman/handchord/internal/recorder"
	"github.com/ayusman/handchord/internal/store"
	"github.com/gorilla/mux"
)

type startRecordingRequest struct {
	Format string `json:"format"`
}

type recordingStatusResponse struct {
	Recording bool   `json:"recording"`
	Format    string `json:"format,omitempty"`
}

type listRecordingsResponse struct {
	Recordings []*store.Recording `json:"recordings"`
}

// startRecording handles POST /api/recording/start. The format comes from
// the body or the "format" query parameter and defaults to audio.
func (h *Handler) startRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Format == "" {
		req.Format = r.URL.Query().Get("format")
	}

	format, err := recorder.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recording format")
		return
	}

	if err := h.app.StartRecording(r.Context(), format); err != nil {
		switch {
		case errors.Is(err, recorder.ErrAlreadyRecording):
			writeError(w, http.StatusConflict, "Recording already in progress")
		case errors.Is(err, recorder.ErrVideoUnavailable):
			writeError(w, http.StatusServiceUnavailable, "Video recording unavailable")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, recordingStatusResponse{Recording: true, Format: string(format)})
}

// finishRecording handles POST /api/recording/finish. The finished file is
// returned as a download; with no active session the response is 204.
func (h *Handler) finishRecording(w http.ResponseWriter, r *http.Request) {
	export, saved, err := h.app.FinishRecording(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if export == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if saved != nil {
		w.Header().Set("X-Recording-Id", saved.ID)
	}
	setAttachment(w, export.Name, export.MIME)
	http.ServeContent(w, r, export.Name, export.CreatedAt, bytes.NewReader(export.Data))
}

// listRecordings handles GET /api/recordings.
func (h *Handler) listRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := h.app.Recordings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}
	if recs == nil {
		recs = []*store.Recording{}
	}
	writeJSON(w, http.StatusOK, listRecordingsResponse{Recordings: recs})
}

// downloadRecording handles GET /api/recordings/{id}.
func (h *Handler) downloadRecording(w http.ResponseWriter, r *http.Request) {
	st := h.app.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}

	rec, f, err := st.Recordings().Open(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to open recording")
		return
	}
	defer f.Close()

	setAttachment(w, rec.FileName, rec.MIME)
	http.ServeContent(w, r, rec.FileName, rec.CreatedAt, f)
}

// deleteRecording handles DELETE /api/recordings/{id}.
func (h *Handler) deleteRecording(w http.ResponseWriter, r *http.Request) {
	st := h.app.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}

	if err := st.Recordings().Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func setAttachment(w http.ResponseWriter, name, mime string) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
