package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/handchord/internal/render"
)

// StageJPEG returns the composited stage as JPEG. The composition is cached
// for one stage frame so concurrent viewers share the work.
func (a *App) StageJPEG() ([]byte, error) {
	a.stageMu.Lock()
	defer a.stageMu.Unlock()

	now := a.clock.Now()
	interval := time.Second / time.Duration(a.config.StageFPS)
	if a.stageJPEG != nil && now.Sub(a.stageAt) < interval {
		return a.stageJPEG, nil
	}

	a.frameMu.Lock()
	frame := a.frame
	a.frameMu.Unlock()

	img := a.stage.Compose(frame, a.overlay.Snapshot(), a.viz.Snapshot(), a.stageLabel())
	data, err := render.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("encode stage: %w", err)
	}

	a.stageJPEG = data
	a.stageAt = now
	return data, nil
}

func (a *App) stageLabel() string {
	parts := []string{a.graph.State().Waveform.String(), string(a.State())}
	if f := a.recorder.ActiveFormat(); f != "" {
		parts = append(parts, "rec "+string(f))
	}
	return strings.Join(parts, " | ")
}
