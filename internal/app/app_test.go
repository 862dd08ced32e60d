package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handchord/internal/audio"
	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/clock"
	"github.com/ayusman/handchord/internal/control"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/mapper"
	"github.com/ayusman/handchord/internal/metrics"
	"github.com/ayusman/handchord/internal/recorder"
	"github.com/ayusman/handchord/internal/store"
	"gocv.io/x/gocv"
)

type fakeOutput struct {
	mu     sync.Mutex
	starts int
	closed bool
	err    error
}

func (o *fakeOutput) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.starts++
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type chordCall struct {
	notes    []string
	duration time.Duration
	velocity float64
}

type fakeChords struct {
	mu     sync.Mutex
	calls  []chordCall
	closed bool
}

func (c *fakeChords) Chord(notes []string, d time.Duration, velocity float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, chordCall{notes: notes, duration: d, velocity: velocity})
	return nil
}

func (c *fakeChords) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChords) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeMP3(_ context.Context, pcm []byte, _, _ int) ([]byte, error) {
	return []byte("mp3"), nil
}

func (fakeEncoder) StartWebM(recorder.LiveOptions, func([]byte)) (recorder.LiveEncoder, error) {
	return nil, errors.New("video not supported in tests")
}

type testRig struct {
	app      *App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	output   *fakeOutput
	chords   *fakeChords
	clock    *clock.Fake
}

func newTestRig(t *testing.T, st *store.Store) *testRig {
	t.Helper()

	rig := &testRig{
		camera:   capture.NewMockCamera(nil, true),
		detector: detector.NewMockDetector(),
		output:   &fakeOutput{},
		chords:   &fakeChords{},
		clock:    clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	a, err := New(Config{
		Graph:    audio.NewGraph(44100),
		Output:   rig.output,
		Camera:   rig.camera,
		Detector: rig.detector,
		Encoder:  fakeEncoder{},
		Store:    st,
		Chords:   rig.chords,
		Clock:    rig.clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	rig.app = a
	return rig
}

func TestNew_RequiresGraphAndCamera(t *testing.T) {
	if _, err := New(Config{Camera: capture.NewMockCamera(nil, true)}); err == nil {
		t.Error("New() without graph should fail")
	}
	if _, err := New(Config{Graph: audio.NewGraph(44100)}); err == nil {
		t.Error("New() without camera should fail")
	}
}

func TestApp_ChordThrottle(t *testing.T) {
	tests := []struct {
		name  string
		gap   time.Duration
		wantN int
	}{
		{name: "50ms apart", gap: 50 * time.Millisecond, wantN: 1},
		{name: "exactly 200ms apart", gap: 200 * time.Millisecond, wantN: 1},
		{name: "250ms apart", gap: 250 * time.Millisecond, wantN: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.1, 0.5)})
			if err := rig.app.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			now := rig.clock.Now()
			rig.app.tick(now)
			rig.app.tick(now.Add(tt.gap))

			if got := rig.chords.count(); got != tt.wantN {
				t.Errorf("chords triggered = %d, want %d", got, tt.wantN)
			}
		})
	}
}

func TestApp_TickDrivesGraph(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.detector.SetHands([]detector.HandLandmarks{
		detector.HandAt(0.1, 0.25),
		detector.HandAt(0.9, 0.9),
	})
	rig.app.Start(context.Background())

	now := rig.clock.Now()
	rig.app.tick(now)

	if got := len(rig.app.Hands()); got != 2 {
		t.Fatalf("hands = %d, want 2", got)
	}
	if got, want := rig.app.Graph().State().Cutoff, mapper.Cutoff(0.25); got != want {
		t.Errorf("cutoff = %v, want %v from the primary hand", got, want)
	}

	call := rig.chords.calls[0]
	want := []string{"C4", "E4", "G4", "D#4", "A#4"}
	if len(call.notes) != len(want) {
		t.Fatalf("notes = %v, want %v", call.notes, want)
	}
	for i := range want {
		if call.notes[i] != want[i] {
			t.Errorf("notes = %v, want %v", call.notes, want)
			break
		}
	}
	if call.duration != time.Second {
		t.Errorf("duration = %v, want the decay knob's 1s", call.duration)
	}
	if call.velocity != mapper.Intensity(0.25) {
		t.Errorf("velocity = %v, want %v", call.velocity, mapper.Intensity(0.25))
	}

	// cutoff follows every tick, even when the chord is throttled
	rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.1, 0.75)})
	rig.app.tick(now.Add(10 * time.Millisecond))
	if got, want := rig.app.Graph().State().Cutoff, mapper.Cutoff(0.75); got != want {
		t.Errorf("cutoff = %v, want %v", got, want)
	}
	if rig.chords.count() != 1 {
		t.Errorf("throttled tick triggered a chord")
	}
}

func TestApp_ChordUsesKnobOffsets(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.1, 0.5)})
	rig.app.Start(context.Background())

	// an offset landing on the triad collapses the chord to four notes
	if _, err := rig.app.Surface().Set(control.PitchA, 4); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	rig.app.Surface().Set(control.Decay, 0.1)

	rig.app.tick(rig.clock.Now())

	call := rig.chords.calls[0]
	if len(call.notes) != 4 {
		t.Errorf("notes = %v, want 4 unique notes", call.notes)
	}
	if call.duration != 100*time.Millisecond {
		t.Errorf("duration = %v, want 100ms", call.duration)
	}
}

func TestApp_DetectorNotReady(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.1, 0.5)})
	rig.detector.SetReady(false)
	rig.app.Start(context.Background())

	rig.app.tick(rig.clock.Now())

	if rig.chords.count() != 0 {
		t.Error("no chord should trigger while the detector is not ready")
	}
	if rig.detector.Calls() != 1 {
		t.Errorf("detector calls = %d, want 1", rig.detector.Calls())
	}
}

func TestApp_NoHandsNoChord(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.app.Start(context.Background())

	before := rig.app.Graph().State().Cutoff
	rig.app.tick(rig.clock.Now())

	if rig.chords.count() != 0 {
		t.Error("no chord should trigger without hands")
	}
	if got := rig.app.Graph().State().Cutoff; got != before {
		t.Errorf("cutoff changed without hands: %v -> %v", before, got)
	}
}

func TestApp_PowerLifecycle(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	if rig.app.State() != StateOff {
		t.Fatalf("initial state = %s, want off", rig.app.State())
	}
	if !rig.app.Graph().State().Muted {
		t.Error("graph should start muted")
	}

	t.Run("start acquires devices", func(t *testing.T) {
		if err := rig.app.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if rig.app.State() != StateRunning {
			t.Errorf("state = %s, want running", rig.app.State())
		}
		if rig.app.Graph().State().Muted {
			t.Error("graph should be unmuted while running")
		}
		if rig.camera.Opens() != 1 || rig.output.starts != 1 {
			t.Errorf("camera opens = %d, audio starts = %d; want 1, 1", rig.camera.Opens(), rig.output.starts)
		}
		if got := rig.camera.FPS(); got != DefaultFrameRate {
			t.Errorf("camera fps = %d, want %d", got, DefaultFrameRate)
		}
	})

	t.Run("second start is a no-op", func(t *testing.T) {
		if err := rig.app.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if rig.output.starts != 1 {
			t.Errorf("audio starts = %d, want 1", rig.output.starts)
		}
	})

	t.Run("stop mutes immediately", func(t *testing.T) {
		rig.app.Stop()
		if rig.app.State() != StateOff {
			t.Errorf("state = %s, want off", rig.app.State())
		}
		if !rig.app.Graph().State().Muted {
			t.Error("graph should be muted after Stop")
		}
		if !rig.camera.IsOpen() {
			t.Error("camera should stay open after Stop")
		}
	})

	t.Run("restart does not reopen the camera", func(t *testing.T) {
		if err := rig.app.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if rig.camera.Opens() != 1 {
			t.Errorf("camera opens = %d, want 1", rig.camera.Opens())
		}
	})

	t.Run("close releases devices", func(t *testing.T) {
		if err := rig.app.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if rig.camera.IsOpen() {
			t.Error("camera should be closed")
		}
		if !rig.detector.Closed() || !rig.output.closed || !rig.chords.closed {
			t.Error("detector, audio output and chord sink should be closed")
		}
		if err := rig.app.Start(ctx); !errors.Is(err, ErrClosed) {
			t.Errorf("Start() after Close = %v, want ErrClosed", err)
		}
	})
}

func TestApp_StartFailureRaisesAlert(t *testing.T) {
	rig := newTestRig(t, nil)
	denied := errors.New("permission denied")
	rig.camera.SetOpenError(denied)

	events, cancel := rig.app.Subscribe()
	defer cancel()

	err := rig.app.Start(context.Background())
	if !errors.Is(err, denied) {
		t.Fatalf("Start() error = %v, want %v", err, denied)
	}
	if rig.app.State() != StateOff {
		t.Errorf("state = %s, want off", rig.app.State())
	}

	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventAlert {
				return
			}
		case <-timeout:
			t.Fatal("no alert event published")
		}
	}
}

func TestApp_DetectorFactory(t *testing.T) {
	d := detector.NewMockDetector()
	calls := 0
	a, err := New(Config{
		Graph:   audio.NewGraph(44100),
		Camera:  capture.NewMockCamera(nil, true),
		Encoder: fakeEncoder{},
		Clock:   clock.NewFake(time.Now()),
		NewDetector: func(context.Context) (detector.Detector, error) {
			calls++
			return d, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Detector() != nil {
		t.Fatal("detector should be created on first power on")
	}
	a.Start(context.Background())
	a.Stop()
	a.Start(context.Background())

	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
	if a.Detector() != d {
		t.Error("factory detector should be installed")
	}
}

func TestApp_ChordEvent(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.5, 0.5)})
	rig.app.Start(context.Background())

	events, cancel := rig.app.Subscribe()
	defer cancel()

	rig.app.tick(rig.clock.Now())

	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventChord {
				continue
			}
			chord := ev.Data.(ChordEvent)
			if chord.Root != "E4" || chord.Index != 2 {
				t.Errorf("chord event = %+v, want root E4 at index 2", chord)
			}
			return
		case <-timeout:
			t.Fatal("no chord event published")
		}
	}
}

func TestApp_Subscribe_Cancel(t *testing.T) {
	rig := newTestRig(t, nil)

	events, cancel := rig.app.Subscribe()
	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestApp_Recording(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	rig := newTestRig(t, st)
	ctx := context.Background()

	export, saved, err := rig.app.FinishRecording(ctx)
	if export != nil || saved != nil || err != nil {
		t.Fatalf("FinishRecording() while idle = %v, %v, %v", export, saved, err)
	}

	if err := rig.app.StartRecording(ctx, recorder.FormatAudio); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if rig.app.Recording() != recorder.FormatAudio {
		t.Errorf("Recording() = %q, want audio", rig.app.Recording())
	}
	if err := rig.app.StartRecording(ctx, recorder.FormatAudio); !errors.Is(err, recorder.ErrAlreadyRecording) {
		t.Errorf("second StartRecording() = %v, want ErrAlreadyRecording", err)
	}

	export, saved, err = rig.app.FinishRecording(ctx)
	if err != nil {
		t.Fatalf("FinishRecording() error = %v", err)
	}
	if string(export.Data) != "mp3" || export.MIME != "audio/mpeg" {
		t.Errorf("export = %q (%s)", export.Data, export.MIME)
	}
	if saved == nil || saved.ID != export.ID {
		t.Fatalf("saved = %+v, want catalog entry for %s", saved, export.ID)
	}

	recs, err := rig.app.Recordings()
	if err != nil {
		t.Fatalf("Recordings() error = %v", err)
	}
	if len(recs) != 1 || recs[0].FileName != "recording.mp3" {
		t.Errorf("Recordings() = %+v", recs)
	}
}

func TestApp_StageJPEG(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.detector.SetHands([]detector.HandLandmarks{detector.HandAt(0.5, 0.5)})
	rig.app.Start(context.Background())
	rig.app.tick(rig.clock.Now())
	rig.app.drawVisualizer()

	first, err := rig.app.StageJPEG()
	if err != nil {
		t.Fatalf("StageJPEG() error = %v", err)
	}
	if len(first) < 2 || first[0] != 0xff || first[1] != 0xd8 {
		t.Fatal("stage is not a JPEG")
	}

	again, _ := rig.app.StageJPEG()
	if &again[0] != &first[0] {
		t.Error("stage should be cached within one stage frame")
	}

	rig.clock.Advance(time.Second)
	fresh, _ := rig.app.StageJPEG()
	if &fresh[0] == &first[0] {
		t.Error("stage should be recomposed after a stage frame")
	}
}

func TestApp_VisualizerRunsWhilePoweredOff(t *testing.T) {
	rig := newTestRig(t, nil)
	if err := rig.app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rig.app.Stop()

	events, cancel := rig.app.Subscribe()
	defer cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventViz {
				continue
			}
			if values, ok := ev.Data.([]float32); !ok || len(values) != audio.AnalyserSize {
				t.Errorf("viz data = %T len %d", ev.Data, len(values))
			}
			return
		case <-time.After(5 * time.Millisecond):
			// the loop creates its ticker on its own goroutine
			rig.clock.Advance(20 * time.Millisecond)
		case <-timeout:
			t.Fatal("no viz event while powered off")
		}
	}
}

// gatedDetector blocks its first Detect call until released.
type gatedDetector struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedDetector() *gatedDetector {
	return &gatedDetector{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *gatedDetector) Detect(*gocv.Mat) ([]detector.HandLandmarks, error) {
	d.mu.Lock()
	d.calls++
	first := d.calls == 1
	d.mu.Unlock()

	if first {
		close(d.entered)
		<-d.release
	}
	return nil, nil
}

func (d *gatedDetector) Close() error { return nil }

func (d *gatedDetector) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.Lock()
		calls := d.calls
		d.mu.Unlock()
		if calls >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("detector calls = %d, want %d", calls, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func droppedFrames(t *testing.T, m *metrics.Manager) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), "frames_dropped_total") {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestApp_CountsTicksMissedDuringDetection(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	det := newGatedDetector()
	m := metrics.NewManager()

	a, err := New(Config{
		Graph:    audio.NewGraph(44100),
		Camera:   capture.NewMockCamera(nil, true),
		Detector: det,
		Encoder:  fakeEncoder{},
		Metrics:  m,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// gesture and visualizer tickers
	fake.BlockUntil(2)

	interval := time.Second / DefaultFrameRate
	fake.Advance(interval)
	select {
	case <-det.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never reached the detector")
	}

	// five more periods pass while detection is blocked; one tick stays queued
	fake.Advance(5 * interval)
	close(det.release)
	det.waitCalls(t, 2)

	if got := droppedFrames(t, m); got != 0 {
		t.Fatalf("dropped after queued tick = %v, want 0", got)
	}

	fake.Advance(interval)
	det.waitCalls(t, 3)

	// the next delivered tick is five periods after the queued one
	if got := droppedFrames(t, m); got != 4 {
		t.Errorf("dropped frames = %v, want 4", got)
	}
}
