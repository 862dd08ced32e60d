// Package config defines handchord's process configuration.
package config

import (
	"os"
	"path/filepath"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CameraID selects the capture device.
	CameraID int `koanf:"camera_id"`

	// DataDir holds the export catalog and recordings.
	DataDir string `koanf:"data_dir"`

	// StaticDir serves the web UI when set.
	StaticDir string `koanf:"static_dir"`

	// SampleRate is the audio device rate in Hz.
	SampleRate int `koanf:"sample_rate"`

	// FrameRate is the gesture and visualizer refresh rate in Hz.
	FrameRate int `koanf:"frame_rate"`

	// StageFPS is the frame rate of the MJPEG stage stream and video recordings.
	StageFPS int `koanf:"stage_fps"`

	// MIDIPort mirrors triggered chords to the named MIDI output when set.
	MIDIPort string `koanf:"midi_port"`

	// FFmpegPath is the encoder binary used for recordings.
	FFmpegPath string `koanf:"ffmpeg_path"`

	// PythonPath and DetectorScript locate the hand landmark service.
	PythonPath     string `koanf:"python_path"`
	DetectorScript string `koanf:"detector_script"`

	// MaxHands bounds the number of hands detected per frame.
	MaxHands int `koanf:"max_hands"`

	// Tray shows the system tray menu.
	Tray bool `koanf:"tray"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:   "info",
		Addr:       ":8080",
		CameraID:   0,
		DataDir:    defaultDataDir(),
		SampleRate: 44100,
		FrameRate:  60,
		StageFPS:   30,
		FFmpegPath: "ffmpeg",
		MaxHands:   2,
		Tray:       false,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handchord"
	}
	return filepath.Join(home, ".handchord")
}
