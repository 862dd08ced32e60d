package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// MP3Bitrate is the export bitrate for audio recordings.
const MP3Bitrate = "128k"

// LiveOptions describes the streams fed to a live encoder.
type LiveOptions struct {
	FPS        int
	SampleRate int
	Channels   int
}

// Encoder produces the export formats.
type Encoder interface {
	// EncodeMP3 encodes interleaved float32 little-endian PCM to MP3.
	EncodeMP3(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error)

	// StartWebM starts a live WebM encoder. Encoded chunks are passed to sink
	// as they are produced.
	StartWebM(opts LiveOptions, sink func(chunk []byte)) (LiveEncoder, error)
}

// LiveEncoder accepts stage frames and audio while recording.
type LiveEncoder interface {
	WriteVideoFrame(jpeg []byte) error
	WriteAudio(pcm []byte) error
	// Close ends the inputs and blocks until every chunk has reached the sink
	// and the encoder has exited.
	Close() error
}

// FFmpeg encodes with the ffmpeg binary.
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an encoder using the binary at path, or "ffmpeg" from PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

func (f *FFmpeg) EncodeMP3(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", MP3Bitrate,
		"-ac", "2",
		"-f", "mp3",
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, args...)
	cmd.Stdin = bytes.NewReader(pcm)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, commandError(f.Path, args, err, &stderr)
	}
	return stdout.Bytes(), nil
}

func (f *FFmpeg) StartWebM(opts LiveOptions, sink func(chunk []byte)) (LiveEncoder, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(opts.FPS),
		"-c:v", "mjpeg",
		"-i", "pipe:0",
		"-f", "f32le",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-ac", strconv.Itoa(opts.Channels),
		"-i", "pipe:3",
		"-map", "0:v", "-map", "1:a",
		"-c:v", "libvpx-vp9",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-pix_fmt", "yuv420p",
		"-c:a", "libopus",
		"-b:a", MP3Bitrate,
		"-f", "webm",
		"pipe:1",
	}

	audioR, audioW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create audio pipe: %w", err)
	}

	cmd := exec.Command(f.Path, args...)
	cmd.ExtraFiles = []*os.File{audioR}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	video, err := cmd.StdinPipe()
	if err != nil {
		audioR.Close()
		audioW.Close()
		return nil, fmt.Errorf("create video pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		audioR.Close()
		audioW.Close()
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		audioR.Close()
		audioW.Close()
		return nil, commandError(f.Path, args, err, stderr)
	}
	// the child holds its own copy
	audioR.Close()

	l := &ffmpegLive{
		cmd:    cmd,
		args:   args,
		path:   f.Path,
		video:  video,
		audio:  audioW,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go l.drain(stdout, sink)
	return l, nil
}

type ffmpegLive struct {
	cmd    *exec.Cmd
	path   string
	args   []string
	video  io.WriteCloser
	audio  *os.File
	stderr *bytes.Buffer
	done   chan struct{}

	videoMu sync.Mutex
	audioMu sync.Mutex
	once    sync.Once
	err     error
}

func (l *ffmpegLive) drain(r io.Reader, sink func([]byte)) {
	defer close(l.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (l *ffmpegLive) WriteVideoFrame(jpeg []byte) error {
	l.videoMu.Lock()
	defer l.videoMu.Unlock()
	_, err := l.video.Write(jpeg)
	return err
}

func (l *ffmpegLive) WriteAudio(pcm []byte) error {
	l.audioMu.Lock()
	defer l.audioMu.Unlock()
	_, err := l.audio.Write(pcm)
	return err
}

func (l *ffmpegLive) Close() error {
	l.once.Do(func() {
		l.videoMu.Lock()
		l.video.Close()
		l.videoMu.Unlock()

		l.audioMu.Lock()
		l.audio.Close()
		l.audioMu.Unlock()

		// stdout must be drained before Wait closes it
		<-l.done
		if err := l.cmd.Wait(); err != nil {
			l.err = commandError(l.path, l.args, err, l.stderr)
		}
	})
	return l.err
}

func commandError(path string, args []string, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("error executing %s %s: %w", path, strings.Join(args, " "), err)
	}
	return fmt.Errorf("error executing %s %s: %w: %s", path, strings.Join(args, " "), err, msg)
}
