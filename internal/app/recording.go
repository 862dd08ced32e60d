package app

import (
	"context"
	"fmt"

	"github.com/ayusman/handchord/internal/logger"
	"github.com/ayusman/handchord/internal/recorder"
	"github.com/ayusman/handchord/internal/store"
)

// RecordingEvent reports recorder transitions.
type RecordingEvent struct {
	Active bool             `json:"active"`
	Format recorder.Format  `json:"format,omitempty"`
	Saved  *store.Recording `json:"saved,omitempty"`
}

// StartRecording begins capturing the master output, plus the stage video
// when format is video.
func (a *App) StartRecording(ctx context.Context, format recorder.Format) error {
	if err := a.recorder.Start(ctx, format); err != nil {
		return err
	}
	a.events.publish(EventRecording, RecordingEvent{Active: true, Format: format})
	return nil
}

// FinishRecording stops the active session and returns its export. The
// export is also saved to the catalog when a store is configured. With no
// active session it returns nils.
func (a *App) FinishRecording(ctx context.Context) (*recorder.Export, *store.Recording, error) {
	export, err := a.recorder.Finish(ctx)
	if err != nil {
		a.events.publish(EventAlert, Alert{Message: err.Error()})
		a.events.publish(EventRecording, RecordingEvent{Active: false})
		return nil, nil, err
	}
	if export == nil {
		return nil, nil, nil
	}

	a.config.Metrics.RecordExport(string(export.Format), len(export.Data))

	var saved *store.Recording
	if a.config.Store != nil {
		saved = &store.Recording{
			ID:        export.ID,
			FileName:  export.Name,
			MIME:      export.MIME,
			Format:    string(export.Format),
			Duration:  export.Duration,
			CreatedAt: export.CreatedAt,
		}
		if err := a.config.Store.Recordings().Save(saved, export.Data); err != nil {
			// the export itself is still returned to the caller
			a.log.Error(ctx, "save recording", logger.String("id", export.ID), logger.Error(err))
			saved = nil
		}
	}

	a.events.publish(EventRecording, RecordingEvent{Active: false, Format: export.Format, Saved: saved})
	return export, saved, nil
}

// Recording returns the active recording format, or "" when idle.
func (a *App) Recording() recorder.Format {
	return a.recorder.ActiveFormat()
}

// Recordings lists the catalog, newest first.
func (a *App) Recordings() ([]*store.Recording, error) {
	if a.config.Store == nil {
		return nil, nil
	}
	recs, err := a.config.Store.Recordings().List()
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return recs, nil
}
