package recorder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handchord/internal/audio"
)

type fakeSource struct {
	mu      sync.Mutex
	tap     audio.Tap
	setTaps int
}

func (f *fakeSource) SetTap(t audio.Tap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tap = t
	f.setTaps++
}

func (f *fakeSource) SampleRate() int { return 1000 }

func (f *fakeSource) play(samples []float32, channels int) {
	f.mu.Lock()
	tap := f.tap
	f.mu.Unlock()
	if tap != nil {
		tap(samples, channels)
	}
}

type fakeEncoder struct {
	mu       sync.Mutex
	pcm      []byte
	channels int
	err      error
	live     *fakeLive
}

func (e *fakeEncoder) EncodeMP3(_ context.Context, pcm []byte, sampleRate, channels int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.pcm = append([]byte(nil), pcm...)
	e.channels = channels
	return []byte("ID3-mp3"), nil
}

func (e *fakeEncoder) StartWebM(opts LiveOptions, sink func([]byte)) (LiveEncoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.live = &fakeLive{sink: sink, opts: opts}
	sink([]byte("header|"))
	return e.live, nil
}

type fakeLive struct {
	mu     sync.Mutex
	sink   func([]byte)
	opts   LiveOptions
	frames int
	audio  int
	closed bool
}

func (l *fakeLive) WriteVideoFrame(jpeg []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames++
	return nil
}

func (l *fakeLive) WriteAudio(pcm []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audio += len(pcm)
	return nil
}

func (l *fakeLive) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	// the trailing cluster only arrives once inputs close
	l.sink([]byte("cues"))
	return nil
}

func (l *fakeLive) frameCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

func floats(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4:]))
	}
	return out
}

func TestRecorder_FinishWithoutSession(t *testing.T) {
	r := New(Config{Source: &fakeSource{}, Encoder: &fakeEncoder{}})

	export, err := r.Finish(context.Background())
	if export != nil || err != nil {
		t.Errorf("Finish() = %v, %v; want nil, nil", export, err)
	}
}

func TestRecorder_AudioSession(t *testing.T) {
	src := &fakeSource{}
	enc := &fakeEncoder{}
	r := New(Config{Source: src, Encoder: enc})
	ctx := context.Background()

	if err := r.Start(ctx, FormatAudio); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.Recording() || r.ActiveFormat() != FormatAudio {
		t.Fatal("recorder should be recording audio")
	}

	src.play([]float32{0.1, -0.1, 0.2, -0.2}, 2)
	src.play([]float32{0.3, -0.3}, 2)

	export, err := r.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if export.Name != "recording.mp3" || export.MIME != "audio/mpeg" {
		t.Errorf("export = %s (%s), want recording.mp3 (audio/mpeg)", export.Name, export.MIME)
	}
	if !bytes.Equal(export.Data, []byte("ID3-mp3")) {
		t.Errorf("export data = %q", export.Data)
	}
	if enc.channels != 2 {
		t.Errorf("encoded channels = %d, want 2", enc.channels)
	}
	want := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	got := floats(enc.pcm)
	if len(got) != len(want) {
		t.Fatalf("encoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %f, want %f", i, got[i], want[i])
		}
	}
	// 3 frames at 1kHz
	if export.Duration != 3*time.Millisecond {
		t.Errorf("duration = %v, want 3ms", export.Duration)
	}
	if r.Recording() {
		t.Error("recorder should be idle after Finish")
	}
}

func TestRecorder_MonoIsDuplicatedToStereo(t *testing.T) {
	src := &fakeSource{}
	enc := &fakeEncoder{}
	r := New(Config{Source: src, Encoder: enc})
	ctx := context.Background()

	r.Start(ctx, FormatAudio)
	src.play([]float32{0.5, 0.25}, 1)
	if _, err := r.Finish(ctx); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	want := []float32{0.5, 0.5, 0.25, 0.25}
	got := floats(enc.pcm)
	if len(got) != len(want) {
		t.Fatalf("encoded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestRecorder_StartWhileRecording(t *testing.T) {
	r := New(Config{Source: &fakeSource{}, Encoder: &fakeEncoder{}})
	ctx := context.Background()

	if err := r.Start(ctx, FormatAudio); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(ctx, FormatAudio); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start() = %v, want ErrAlreadyRecording", err)
	}
}

func TestRecorder_TapInstalledOnce(t *testing.T) {
	src := &fakeSource{}
	r := New(Config{Source: src, Encoder: &fakeEncoder{}})
	ctx := context.Background()

	if src.setTaps != 0 {
		t.Fatal("tap should be installed lazily")
	}
	for i := 0; i < 3; i++ {
		r.Start(ctx, FormatAudio)
		r.Finish(ctx)
	}
	if src.setTaps != 1 {
		t.Errorf("SetTap called %d times, want 1", src.setTaps)
	}
}

func TestRecorder_IgnoresAudioWhileIdle(t *testing.T) {
	src := &fakeSource{}
	enc := &fakeEncoder{}
	r := New(Config{Source: src, Encoder: enc})
	ctx := context.Background()

	r.Start(ctx, FormatAudio)
	r.Finish(ctx)
	src.play([]float32{1, 1}, 2)

	r.Start(ctx, FormatAudio)
	r.Finish(ctx)
	if len(enc.pcm) != 0 {
		t.Errorf("idle audio leaked into the next session: %d bytes", len(enc.pcm))
	}
}

func TestRecorder_EncodeErrorPropagates(t *testing.T) {
	boom := errors.New("lame missing")
	r := New(Config{Source: &fakeSource{}, Encoder: &fakeEncoder{err: boom}})
	ctx := context.Background()

	r.Start(ctx, FormatAudio)
	if _, err := r.Finish(ctx); !errors.Is(err, boom) {
		t.Errorf("Finish() error = %v, want %v", err, boom)
	}
	if r.Recording() {
		t.Error("failed export should still end the session")
	}
}

func TestRecorder_VideoSession(t *testing.T) {
	src := &fakeSource{}
	enc := &fakeEncoder{}
	frames := func() ([]byte, error) { return []byte{0xff, 0xd8}, nil }
	r := New(Config{Source: src, Encoder: enc, Frames: frames, FPS: 100})
	ctx := context.Background()

	if err := r.Start(ctx, FormatVideo); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if enc.live.opts.Channels != 2 || enc.live.opts.SampleRate != 1000 || enc.live.opts.FPS != 100 {
		t.Errorf("live options = %+v", enc.live.opts)
	}

	src.play([]float32{0.1, 0.1}, 2)
	deadline := time.Now().Add(2 * time.Second)
	for enc.live.frameCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	export, err := r.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !enc.live.closed {
		t.Error("live encoder should be closed before export")
	}
	if export.Name != "recording.webm" || export.MIME != "video/webm" {
		t.Errorf("export = %s (%s)", export.Name, export.MIME)
	}
	if got := string(export.Data); got != "header|cues" {
		t.Errorf("export data = %q, want chunks concatenated in order", got)
	}
	if enc.live.frameCount() == 0 {
		t.Error("no stage frames reached the encoder")
	}
	if enc.live.audio != 8 {
		t.Errorf("audio bytes = %d, want 8", enc.live.audio)
	}
}

func TestRecorder_VideoRequiresFrames(t *testing.T) {
	r := New(Config{Source: &fakeSource{}, Encoder: &fakeEncoder{}})
	if err := r.Start(context.Background(), FormatVideo); !errors.Is(err, ErrVideoUnavailable) {
		t.Errorf("Start(video) = %v, want ErrVideoUnavailable", err)
	}
	if r.Recording() {
		t.Error("recorder should stay idle")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatAudio},
		{in: "audio", want: FormatAudio},
		{in: "VIDEO", want: FormatVideo},
		{in: "gif", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFFmpeg_EncodeMP3_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	enc := NewFFmpeg("")
	if !enc.Available() {
		t.Skip("skipping test - ffmpeg not available")
	}

	const sr = 44100
	samples := make([]float32, sr/10*2)
	for i := 0; i < len(samples); i += 2 {
		v := float32(0.3 * math.Sin(2*math.Pi*440*float64(i/2)/sr))
		samples[i], samples[i+1] = v, v
	}

	data, err := enc.EncodeMP3(context.Background(), encodePCM(samples, 2), sr, 2)
	if err != nil {
		t.Skipf("skipping test - ffmpeg cannot encode mp3: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty mp3 output")
	}
}
