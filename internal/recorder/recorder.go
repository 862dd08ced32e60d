package recorder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ayusman/handchord/internal/audio"
	"github.com/ayusman/handchord/internal/logger"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrUnknownFormat is returned for a format other than audio or video.
	ErrUnknownFormat = errors.New("unknown recording format")
	// ErrVideoUnavailable is returned when video recording has no stage source
	// or the live encoder cannot start.
	ErrVideoUnavailable = errors.New("video recording unavailable")
)

// outputChannels is the channel count of every export.
const outputChannels = 2

// audioQueue bounds PCM buffers waiting for the live encoder.
const audioQueue = 256

// Source is the audio graph whose master output is recorded.
type Source interface {
	SetTap(t audio.Tap)
	SampleRate() int
}

// FrameSource returns the current stage image as JPEG.
type FrameSource func() ([]byte, error)

// Config holds recorder dependencies.
type Config struct {
	Source  Source
	Frames  FrameSource
	Encoder Encoder
	// FPS is the stage frame rate for video sessions (default 30).
	FPS int
}

// Recorder is IDLE or RECORDING; at most one session is active.
type Recorder struct {
	mu     sync.Mutex
	cfg    Config
	tapped bool
	active *session
	log    logger.Logger
}

// New creates an idle recorder.
func New(cfg Config) *Recorder {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &Recorder{
		cfg: cfg,
		log: logger.Named("recorder"),
	}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// ActiveFormat returns the active session's format, or "" when idle.
func (r *Recorder) ActiveFormat() Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.format
}

// Start begins a session. The master tap is installed on first use.
func (r *Recorder) Start(ctx context.Context, format Format) error {
	if format != FormatAudio && format != FormatVideo {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}
	if format == FormatVideo && r.cfg.Frames == nil {
		return ErrVideoUnavailable
	}

	if !r.tapped {
		r.cfg.Source.SetTap(r.capture)
		r.tapped = true
	}

	s := &session{
		id:      uuid.NewString(),
		format:  format,
		started: time.Now(),
		stop:    make(chan struct{}),
	}

	if format == FormatVideo {
		live, err := r.cfg.Encoder.StartWebM(LiveOptions{
			FPS:        r.cfg.FPS,
			SampleRate: r.cfg.Source.SampleRate(),
			Channels:   outputChannels,
		}, s.appendChunk)
		if err != nil {
			return fmt.Errorf("%w: start video encoder: %w", ErrVideoUnavailable, err)
		}
		s.live = live
		s.audio = make(chan []byte, audioQueue)
		s.wg.Add(2)
		go s.pumpAudio()
		go s.pumpFrames(r.cfg.Frames, r.cfg.FPS)
	}

	r.active = s
	r.log.Info(ctx, "recording started", logger.String("id", s.id), logger.String("format", string(format)))
	return nil
}

// Finish stops the active session and encodes it. With no active session it
// returns (nil, nil). It blocks until the capture has fully stopped.
func (r *Recorder) Finish(ctx context.Context) (*Export, error) {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	if err := s.halt(); err != nil {
		return nil, fmt.Errorf("stop capture: %w", err)
	}

	export := &Export{
		ID:        s.id,
		Name:      s.format.FileName(),
		MIME:      s.format.MIME(),
		Format:    s.format,
		CreatedAt: time.Now(),
	}

	switch s.format {
	case FormatAudio:
		pcm := s.joined()
		frames := len(pcm) / (4 * outputChannels)
		sr := r.cfg.Source.SampleRate()
		data, err := r.cfg.Encoder.EncodeMP3(ctx, pcm, sr, outputChannels)
		if err != nil {
			return nil, fmt.Errorf("encode mp3: %w", err)
		}
		export.Data = data
		export.Duration = time.Duration(float64(frames) / float64(sr) * float64(time.Second))
	case FormatVideo:
		export.Data = s.joined()
		export.Duration = time.Since(s.started)
	}

	r.log.Info(ctx, "recording finished",
		logger.String("id", export.ID),
		logger.String("format", string(export.Format)),
		logger.Int("bytes", len(export.Data)),
		logger.Duration("duration", export.Duration))
	if s.dropped > 0 {
		r.log.Warn(ctx, "audio buffers dropped while recording", logger.Int("dropped", s.dropped))
	}
	return export, nil
}

// capture is the master tap. Mono input is duplicated to both channels.
func (r *Recorder) capture(samples []float32, channels int) {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s == nil || len(samples) == 0 {
		return
	}
	s.pushAudio(encodePCM(samples, channels))
}

// encodePCM converts interleaved samples to stereo float32 little-endian bytes.
func encodePCM(samples []float32, channels int) []byte {
	var buf []byte
	switch channels {
	case 1:
		buf = make([]byte, len(samples)*4*outputChannels)
		for i, s := range samples {
			bits := math.Float32bits(s)
			binary.LittleEndian.PutUint32(buf[i*8:], bits)
			binary.LittleEndian.PutUint32(buf[i*8+4:], bits)
		}
	default:
		frames := len(samples) / channels
		buf = make([]byte, frames*4*outputChannels)
		for i := 0; i < frames; i++ {
			for c := 0; c < outputChannels; c++ {
				binary.LittleEndian.PutUint32(buf[(i*outputChannels+c)*4:], math.Float32bits(samples[i*channels+c]))
			}
		}
	}
	return buf
}

type session struct {
	id      string
	format  Format
	started time.Time

	mu      sync.Mutex
	chunks  [][]byte
	dropped int

	live  LiveEncoder
	audio chan []byte
	stop  chan struct{}
	wg    sync.WaitGroup
}

// appendChunk stores one chunk: PCM for audio sessions, encoded WebM for video.
func (s *session) appendChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

func (s *session) joined() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil)
}

func (s *session) pushAudio(pcm []byte) {
	if s.live == nil {
		s.appendChunk(pcm)
		return
	}
	select {
	case <-s.stop:
	case s.audio <- pcm:
	default:
		// never block the audio device
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

func (s *session) pumpAudio() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			// flush what the tap queued before the stop
			for {
				select {
				case pcm := <-s.audio:
					if err := s.live.WriteAudio(pcm); err != nil {
						return
					}
				default:
					return
				}
			}
		case pcm := <-s.audio:
			if err := s.live.WriteAudio(pcm); err != nil {
				return
			}
		}
	}
}

func (s *session) pumpFrames(frames FrameSource, fps int) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			jpeg, err := frames()
			if err != nil || len(jpeg) == 0 {
				continue
			}
			if err := s.live.WriteVideoFrame(jpeg); err != nil {
				return
			}
		}
	}
}

// halt stops the pumps and waits for the live encoder to flush and exit.
func (s *session) halt() error {
	close(s.stop)
	s.wg.Wait()
	if s.live == nil {
		return nil
	}
	return s.live.Close()
}
