// Package app wires the camera, hand tracker, audio graph and recorder into
// the playable instrument and owns its power lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ayusman/handchord/internal/audio"
	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/clock"
	"github.com/ayusman/handchord/internal/control"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/logger"
	"github.com/ayusman/handchord/internal/metrics"
	"github.com/ayusman/handchord/internal/recorder"
	"github.com/ayusman/handchord/internal/render"
	"github.com/ayusman/handchord/internal/store"
	"github.com/ayusman/handchord/internal/tracker"
	"github.com/bep/debounce"
)

// Loop timing defaults.
const (
	// DefaultFrameRate is the gesture and visualizer cycle rate in Hz.
	DefaultFrameRate = 60
	// DefaultStageFPS is the rate the composited stage is refreshed at.
	DefaultStageFPS = 30
	// ChordInterval is the minimum wall time between chord triggers;
	// strictly more than this must elapse.
	ChordInterval = 200 * time.Millisecond
	// MinChordDuration is the shortest chord length in seconds.
	MinChordDuration = 0.1
	// ControlsDebounce coalesces knob change broadcasts.
	ControlsDebounce = 50 * time.Millisecond
)

const (
	vizWidth  = 640
	vizHeight = 96
)

// State is the power lifecycle state.
type State string

const (
	StateOff       State = "off"
	StateAcquiring State = "acquiring"
	StateRunning   State = "running"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("app closed")

// AudioOutput is the audio device the graph plays through.
type AudioOutput interface {
	Start(ctx context.Context) error
	Close() error
}

// DetectorFactory creates and initializes the hand detector.
type DetectorFactory func(ctx context.Context) (detector.Detector, error)

// ChordSink receives every triggered chord, e.g. a MIDI output.
type ChordSink interface {
	Chord(notes []string, duration time.Duration, velocity float64) error
	Close() error
}

// Config holds the application's collaborators. Graph and Camera are
// required; the rest default or stay disabled when nil.
type Config struct {
	Graph       *audio.Graph
	Output      AudioOutput
	Camera      capture.Camera
	Detector    detector.Detector
	NewDetector DetectorFactory
	Encoder     recorder.Encoder
	Store       *store.Store
	Chords      ChordSink
	Metrics     *metrics.Manager
	Clock       clock.Clock
	FrameRate   int
	StageFPS    int
}

// App is the instrument. Lifecycle state is guarded by mu; the gesture
// cycle and the visualizer cycle each run in their own goroutine.
type App struct {
	config   Config
	graph    *audio.Graph
	camera   capture.Camera
	tracker  *tracker.Tracker
	surface  *control.Surface
	recorder *recorder.Recorder
	overlay  *render.Overlay
	viz      *render.Visualizer
	stage    *render.Stage
	events   *broker
	clock    clock.Clock
	log      logger.Logger

	mu        sync.RWMutex
	state     State
	stopCh    chan struct{}
	loopDone  chan struct{}
	vizStop   chan struct{}
	vizDone   chan struct{}
	closed    bool
	hands     []tracker.HandSample
	lastChord time.Time

	frameMu sync.Mutex
	frame   image.Image

	stageMu   sync.Mutex
	stageJPEG []byte
	stageAt   time.Time

	debounced func(f func())
}

// New creates an App in the OFF state.
func New(config Config) (*App, error) {
	if config.Graph == nil {
		return nil, errors.New("app: audio graph is required")
	}
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}
	if config.StageFPS <= 0 {
		config.StageFPS = DefaultStageFPS
	}
	if config.Encoder == nil {
		config.Encoder = recorder.NewFFmpeg("")
	}

	stage, err := render.NewStage()
	if err != nil {
		return nil, fmt.Errorf("create stage: %w", err)
	}

	size := config.Camera.Size()
	a := &App{
		config:    config,
		graph:     config.Graph,
		camera:    config.Camera,
		tracker:   tracker.New(config.Detector),
		surface:   control.NewSurface(config.Graph),
		overlay:   render.NewOverlay(size.X, size.Y),
		viz:       render.NewVisualizer(vizWidth, vizHeight),
		stage:     stage,
		events:    newBroker(config.Metrics),
		clock:     config.Clock,
		log:       logger.Named("app"),
		state:     StateOff,
		debounced: debounce.New(ControlsDebounce),
	}
	a.recorder = recorder.New(recorder.Config{
		Source:  config.Graph,
		Frames:  a.StageJPEG,
		Encoder: config.Encoder,
		FPS:     config.StageFPS,
	})
	a.surface.Subscribe(a.onKnobChange)

	return a, nil
}

// Start powers the instrument on: unlocks the audio device, opens the
// camera and initializes the detector, then starts the gesture cycle.
// Start while acquiring or running is a no-op. On failure the app returns
// to OFF, an alert event is published and the error is returned.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.state != StateOff {
		a.mu.Unlock()
		return nil
	}
	a.state = StateAcquiring
	a.mu.Unlock()
	a.publishState()

	if err := a.acquire(ctx); err != nil {
		a.mu.Lock()
		if a.state == StateAcquiring {
			a.state = StateOff
		}
		a.mu.Unlock()
		a.log.Error(ctx, "power on failed", logger.Error(err))
		a.events.publish(EventAlert, Alert{Message: err.Error()})
		a.publishState()
		return err
	}

	a.mu.Lock()
	if a.state != StateAcquiring {
		// stopped while acquiring
		a.mu.Unlock()
		return nil
	}
	a.state = StateRunning
	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	go a.runGestures(a.stopCh, a.loopDone)
	if a.vizStop == nil {
		a.vizStop = make(chan struct{})
		a.vizDone = make(chan struct{})
		go a.runVisualizer(a.vizStop, a.vizDone)
	}
	a.mu.Unlock()

	a.graph.Dispatch(audio.SetMute{Muted: false})
	a.config.Metrics.SetPowered(true)
	a.log.Info(ctx, "instrument powered on", logger.Int("camera_fps", a.camera.FPS()))
	a.publishState()
	return nil
}

func (a *App) acquire(ctx context.Context) error {
	if a.config.Output != nil {
		if err := a.config.Output.Start(ctx); err != nil {
			return fmt.Errorf("start audio: %w", err)
		}
	}

	if !a.camera.IsOpen() {
		a.camera.SetFPS(a.config.FrameRate)
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}

	if a.tracker.Detector() == nil && a.config.NewDetector != nil {
		d, err := a.config.NewDetector(ctx)
		if err != nil {
			return fmt.Errorf("init hand detector: %w", err)
		}
		a.tracker.SetDetector(d)
	}
	return nil
}

// Stop powers the instrument off: the master is muted and the gesture cycle
// halted. Camera and detector stay open for a quick restart.
func (a *App) Stop() {
	a.mu.Lock()
	if a.state == StateOff {
		a.mu.Unlock()
		return
	}
	a.state = StateOff
	stop, done := a.stopCh, a.loopDone
	a.stopCh, a.loopDone = nil, nil
	a.hands = nil
	a.mu.Unlock()

	a.graph.Dispatch(audio.SetMute{Muted: true})
	if stop != nil {
		close(stop)
		<-done
	}

	a.config.Metrics.SetPowered(false)
	a.log.Info(context.Background(), "instrument powered off")
	a.publishState()
}

// Close stops the instrument, finishes any active recording and releases
// every device. The App cannot be restarted.
func (a *App) Close() error {
	a.Stop()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	vizStop, vizDone := a.vizStop, a.vizDone
	a.mu.Unlock()

	if vizStop != nil {
		close(vizStop)
		<-vizDone
	}

	ctx := context.Background()
	var errs []error
	if a.recorder.Recording() {
		if _, _, err := a.FinishRecording(ctx); err != nil {
			errs = append(errs, fmt.Errorf("finish recording: %w", err))
		}
	}
	if err := a.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if d := a.tracker.Detector(); d != nil {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	if a.config.Output != nil {
		if err := a.config.Output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio: %w", err))
		}
	}
	if a.config.Chords != nil {
		if err := a.config.Chords.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chord sink: %w", err))
		}
	}
	a.events.close()
	return errors.Join(errs...)
}

// State returns the power lifecycle state.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Running reports whether the gesture cycle is active.
func (a *App) Running() bool {
	return a.State() == StateRunning
}

// Hands returns the samples of the latest gesture tick.
func (a *App) Hands() []tracker.HandSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]tracker.HandSample(nil), a.hands...)
}

// NextWaveform advances the oscillator shape.
func (a *App) NextWaveform() audio.Waveform {
	a.graph.Dispatch(audio.NextWaveform{})
	a.publishState()
	return a.graph.State().Waveform
}

// SetMute gates the master output. Power on unmutes again.
func (a *App) SetMute(muted bool) {
	a.graph.Dispatch(audio.SetMute{Muted: muted})
	a.publishState()
}

// Graph returns the audio graph.
func (a *App) Graph() *audio.Graph {
	return a.graph
}

// Surface returns the knob surface.
func (a *App) Surface() *control.Surface {
	return a.surface
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the hand detector, or nil before the first power on.
func (a *App) Detector() detector.Detector {
	return a.tracker.Detector()
}

// SetDetector installs the hand detector.
func (a *App) SetDetector(d detector.Detector) {
	a.tracker.SetDetector(d)
}

// Store returns the recordings catalog, or nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Metrics returns the metrics manager, or nil.
func (a *App) Metrics() *metrics.Manager {
	return a.config.Metrics
}

// Status is a snapshot of the instrument for clients.
type Status struct {
	Power     State                `json:"power"`
	Audio     audio.State          `json:"audio"`
	Recording recorder.Format      `json:"recording,omitempty"`
	Hands     []tracker.HandSample `json:"hands"`
	Knobs     []control.KnobState  `json:"knobs"`
}

// Status returns the current instrument snapshot.
func (a *App) Status() Status {
	hands := a.Hands()
	if hands == nil {
		hands = []tracker.HandSample{}
	}
	return Status{
		Power:     a.State(),
		Audio:     a.graph.State(),
		Recording: a.recorder.ActiveFormat(),
		Hands:     hands,
		Knobs:     a.surface.Knobs(),
	}
}

func (a *App) publishState() {
	a.events.publish(EventState, a.Status())
}

func (a *App) onKnobChange(control.KnobState) {
	a.debounced(func() {
		a.events.publish(EventControls, a.surface.Knobs())
	})
}
