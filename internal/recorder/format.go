// Package recorder captures the master output, and optionally the stage
// video, and finalizes it into a downloadable file.
package recorder

import (
	"fmt"
	"strings"
	"time"
)

// Format selects what a session records.
type Format string

const (
	// FormatAudio records the master output and exports MP3.
	FormatAudio Format = "audio"
	// FormatVideo records the stage with the master output and exports WebM.
	FormatVideo Format = "video"
)

// ParseFormat parses "audio" or "video"; an empty string means audio.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatAudio):
		return FormatAudio, nil
	case string(FormatVideo):
		return FormatVideo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FileName returns the download name for the format.
func (f Format) FileName() string {
	if f == FormatVideo {
		return "recording.webm"
	}
	return "recording.mp3"
}

// MIME returns the content type of the exported file.
func (f Format) MIME() string {
	if f == FormatVideo {
		return "video/webm"
	}
	return "audio/mpeg"
}

// Export is a finished recording.
type Export struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	MIME      string        `json:"mime"`
	Format    Format        `json:"format"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
	Data      []byte        `json:"-"`
}
