package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNotReady is returned by Detect before the detector has been initialized.
var ErrNotReady = errors.New("hand detector not ready")

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// RunningMode selects how the landmark model treats consecutive frames.
type RunningMode string

const (
	// ModeImage treats every frame independently.
	ModeImage RunningMode = "image"
	// ModeVideo tracks hands across frames with increasing timestamps.
	ModeVideo RunningMode = "video"
)

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// Mode is the model running mode (default: video).
	Mode RunningMode

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the landmark service script location.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the script.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		Mode:            ModeVideo,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
